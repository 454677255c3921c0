// Package pipeline orchestrates a document's pass through the full
// redaction decision flow: plugin pre-hooks, span detection, confidence
// modifiers, disambiguation, plugin pre-redaction hooks, redaction, and
// post-hooks.
//
// The pipeline owns stage ordering, tracing, metrics, and audit emission;
// detection and redaction are injected collaborators. A plugin can decide
// a document early through the short-circuit hook, in which case detection
// and redaction never run.
//
//	pipe, err := pipeline.New(pipeline.Config{}, pipeline.Deps{
//	    Detector:       detector,
//	    Redactor:       pipeline.NewTokenRedactor(),
//	    Plugins:        manager,
//	    Confidence:     confidenceEngine,
//	    Disambiguation: disambiguationEngine,
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := pipe.Process(ctx, &plugin.Document{Text: text})
//
// Audit sink failures are logged and never fail the pass; hook failures
// follow the plugin manager's fail-fast setting.
package pipeline
