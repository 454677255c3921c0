// Package stream runs documents through the pipeline continuously.
//
// A Runner accepts documents on a backpressure queue, processes them with
// a pool of supervised workers, and delivers outputs on a channel. Every
// pass runs under a shared circuit breaker so a failing pipeline sheds
// load instead of piling it up. Producers learn about saturation through
// the Submit return value and through pause/resume observers; queue drops
// and breaker rejections are counted, never raised.
//
//	runner, err := stream.NewRunner(cfg, pipe, collector, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := runner.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer runner.Stop()
//
//	runner.Submit(&plugin.Document{Text: text})
//	for out := range runner.Results() {
//	    // ...
//	}
package stream
