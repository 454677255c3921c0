package plugin

import (
	"context"
	"time"

	"umbra-hq/umbra/pkg/span"
)

// Document is the unit of work flowing through the pipeline.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// CandidateSpans are caller-provided detection candidates. Detection
	// happens upstream; the engine only decides what to do with these.
	CandidateSpans []span.Span `json:"candidateSpans,omitempty"`
}

// Result is a finalized redaction outcome, as seen by post-redaction
// hooks and formatters.
type Result struct {
	DocumentID     string        `json:"documentId"`
	OriginalText   string        `json:"originalText"`
	RedactedText   string        `json:"redactedText"`
	Spans          []span.Span   `json:"spans"`
	ShortCircuited bool          `json:"shortCircuited"`
	Duration       time.Duration `json:"duration"`
}

// Plugin is the minimal surface every loaded plugin exposes. Optional
// behavior is declared through the hook and capability interfaces below.
type Plugin interface {
	Name() string
}

// Factory instantiates a plugin from its manifest config. Manifests name
// a factory through their "main" field.
type Factory func(config map[string]any) (Plugin, error)

// Initializer is implemented by plugins that need setup after load.
type Initializer interface {
	Init(ctx context.Context) error
}

// Closer is implemented by plugins that hold resources to release on
// unload.
type Closer interface {
	Close() error
}

// ============================================================================
// Capabilities
// ============================================================================

// SpanDetector is the capability contributed by filter plugins.
type SpanDetector interface {
	DetectSpans(ctx context.Context, doc *Document) ([]span.Span, error)
}

// Formatter is the capability contributed by formatter plugins.
type Formatter interface {
	FormatResult(ctx context.Context, result *Result) (string, error)
}

// AlertChannel is the capability contributed by channel plugins.
type AlertChannel interface {
	SendAlert(ctx context.Context, message string) error
}

// ============================================================================
// Hook interfaces
// ============================================================================

// PreProcessor runs before detection and may rewrite the document.
type PreProcessor interface {
	PreProcess(ctx context.Context, doc *Document) (*Document, error)
}

// ShortCircuiter may terminate the pipeline early with its own result.
// Returning a nil result means no short-circuit.
type ShortCircuiter interface {
	CanShortCircuit(ctx context.Context, doc *Document) (*Result, error)
}

// PostDetector runs after detection and may rewrite the span list.
type PostDetector interface {
	PostDetection(ctx context.Context, spans []span.Span, doc *Document) ([]span.Span, error)
}

// PreRedactor runs after disambiguation, just before redaction.
type PreRedactor interface {
	PreRedaction(ctx context.Context, spans []span.Span, doc *Document) ([]span.Span, error)
}

// PostRedactor runs after redaction and may rewrite the result.
type PostRedactor interface {
	PostRedaction(ctx context.Context, result *Result) (*Result, error)
}

// BeforeRedactor is the first half of the legacy two-stage interface. It
// runs at the preProcess stage against the raw text.
type BeforeRedactor interface {
	BeforeRedaction(ctx context.Context, text string) (string, error)
}

// AfterRedactor is the second half of the legacy two-stage interface. It
// runs at the postRedaction stage.
type AfterRedactor interface {
	AfterRedaction(ctx context.Context, result *Result) (*Result, error)
}

// ============================================================================
// HookSet
// ============================================================================

// HookKind tags which hook interface generation a plugin implements.
type HookKind string

const (
	// HookKindModern plugins implement the five-stage interface.
	HookKindModern HookKind = "modern"

	// HookKindLegacy plugins implement the two-stage interface.
	HookKindLegacy HookKind = "legacy"

	// HookKindNone plugins contribute capabilities but no hooks.
	HookKindNone HookKind = "none"
)

// HookSet is a plugin's hook surface, resolved once at registration. Nil
// fields mean the plugin does not implement that stage.
type HookSet struct {
	PluginName string
	Kind       HookKind
	Priority   int
	Timeout    time.Duration

	PreProcess      PreProcessor
	ShortCircuit    ShortCircuiter
	PostDetection   PostDetector
	PreRedaction    PreRedactor
	PostRedaction   PostRedactor
	BeforeRedaction BeforeRedactor
	AfterRedaction  AfterRedactor
}

// ResolveHooks inspects the plugin once and tags its hook generation. A
// plugin implementing any modern stage is modern; legacy hooks are only
// honored on plugins with no modern stage at all.
func ResolveHooks(p Plugin, m *Manifest) *HookSet {
	hs := &HookSet{
		PluginName: m.Name,
		Kind:       HookKindNone,
		Priority:   m.EffectivePriority(),
		Timeout:    m.EffectiveTimeout(),
	}

	if h, ok := p.(PreProcessor); ok {
		hs.PreProcess = h
	}
	if h, ok := p.(ShortCircuiter); ok {
		hs.ShortCircuit = h
	}
	if h, ok := p.(PostDetector); ok {
		hs.PostDetection = h
	}
	if h, ok := p.(PreRedactor); ok {
		hs.PreRedaction = h
	}
	if h, ok := p.(PostRedactor); ok {
		hs.PostRedaction = h
	}

	if hs.PreProcess != nil || hs.ShortCircuit != nil || hs.PostDetection != nil ||
		hs.PreRedaction != nil || hs.PostRedaction != nil {
		hs.Kind = HookKindModern
		return hs
	}

	if h, ok := p.(BeforeRedactor); ok {
		hs.BeforeRedaction = h
	}
	if h, ok := p.(AfterRedactor); ok {
		hs.AfterRedaction = h
	}
	if hs.BeforeRedaction != nil || hs.AfterRedaction != nil {
		hs.Kind = HookKindLegacy
	}
	return hs
}
