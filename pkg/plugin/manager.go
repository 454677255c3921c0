package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"umbra-hq/umbra/pkg/span"
)

// State is a plugin's lifecycle state.
type State string

const (
	StateDiscovered State = "discovered"
	StateLoaded     State = "loaded"
	StateEnabled    State = "enabled"
	StateDisabled   State = "disabled"
	StateError      State = "error"
)

// Instance tracks one plugin through its lifecycle.
type Instance struct {
	Manifest *Manifest
	State    State
	Err      error

	plugin Plugin
	hooks  *HookSet
}

// InstanceInfo is the exported view of a plugin instance.
type InstanceInfo struct {
	Name     string     `json:"name"`
	Version  string     `json:"version"`
	Type     PluginType `json:"type"`
	State    State      `json:"state"`
	Priority int        `json:"priority"`
	Error    string     `json:"error,omitempty"`
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// PluginDir is scanned by Discover; one subdirectory per plugin.
	PluginDir string `yaml:"plugin_dir"`

	// FailFast aborts a pipeline stage on the first hook failure instead
	// of keeping the pre-hook value and continuing.
	FailFast bool `yaml:"fail_fast"`

	// MaxConsecutiveFailures before the sandbox auto-disables a plugin.
	// Default: 3
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
}

// Manager owns plugin discovery, lifecycle, and hook dispatch. Hooks run
// through its Sandbox; the execution list is kept sorted by priority and
// rebuilt on every enable and disable.
type Manager struct {
	config  ManagerConfig
	logger  *slog.Logger
	sandbox *Sandbox

	mu        sync.RWMutex
	factories map[string]Factory
	plugins   map[string]*Instance
	execList  []*HookSet

	detectors  map[string]SpanDetector
	formatters map[string]Formatter
	channels   map[string]AlertChannel
}

// NewManager creates a plugin manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		config:     cfg,
		logger:     logger.With("component", "plugin.manager"),
		sandbox:    NewSandbox(cfg.MaxConsecutiveFailures, logger),
		factories:  make(map[string]Factory),
		plugins:    make(map[string]*Instance),
		detectors:  make(map[string]SpanDetector),
		formatters: make(map[string]Formatter),
		channels:   make(map[string]AlertChannel),
	}
	m.sandbox.OnAutoDisable(m.handleAutoDisable)
	return m
}

// Sandbox exposes the manager's sandbox for metrics access.
func (m *Manager) Sandbox() *Sandbox {
	return m.sandbox
}

// RegisterFactory binds a manifest entry point name to a factory.
func (m *Manager) RegisterFactory(main string, factory Factory) {
	m.mu.Lock()
	m.factories[main] = factory
	m.mu.Unlock()
}

// ============================================================================
// Discovery and loading
// ============================================================================

// Discover scans the configured plugin directory, reading one manifest
// per subdirectory. Invalid manifests are logged and skipped. Returns the
// number of plugins discovered in this pass.
func (m *Manager) Discover() (int, error) {
	entries, err := os.ReadDir(m.config.PluginDir)
	if err != nil {
		return 0, fmt.Errorf("reading plugin directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.config.PluginDir, entry.Name(), ManifestFileName)
		manifest, err := LoadManifest(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			m.logger.Warn("skipping invalid plugin manifest", "path", path, "error", err)
			continue
		}
		if err := m.AddManifest(manifest); err != nil {
			m.logger.Warn("skipping plugin", "plugin", manifest.Name, "error", err)
			continue
		}
		count++
	}

	m.logger.Info("plugin discovery complete", "discovered", count)
	return count, nil
}

// AddManifest registers a manifest directly, bypassing directory
// discovery. Used for embedded plugins and tests.
func (m *Manager) AddManifest(manifest *Manifest) error {
	if err := manifest.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.plugins[manifest.Name]; exists {
		return fmt.Errorf("plugin %q already registered", manifest.Name)
	}
	m.plugins[manifest.Name] = &Instance{Manifest: manifest, State: StateDiscovered}
	return nil
}

// LoadAll loads every discovered plugin in dependency order. A dependency
// cycle is logged and its edge skipped rather than blocking the load.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	var discovered []*Instance
	for _, inst := range m.plugins {
		if inst.State == StateDiscovered {
			discovered = append(discovered, inst)
		}
	}
	order := m.sortByDependenciesLocked(discovered)
	m.mu.Unlock()

	var firstErr error
	for _, inst := range order {
		if err := m.Load(ctx, inst.Manifest.Name); err != nil {
			m.logger.Error("plugin load failed", "plugin", inst.Manifest.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Load instantiates one discovered plugin through its factory.
func (m *Manager) Load(ctx context.Context, name string) error {
	m.mu.Lock()
	inst, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if inst.State != StateDiscovered {
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot load plugin %q from state %s", ErrInvalidTransition, name, inst.State)
	}

	// Cyclic dependencies are loaded anyway (the cycle's edge is
	// skipped), so a dependency still in discovered is tolerated here.
	for _, dep := range inst.Manifest.Dependencies {
		depInst, ok := m.plugins[dep]
		if !ok {
			err := fmt.Errorf("plugin %q: missing dependency %q", name, dep)
			inst.State = StateError
			inst.Err = err
			m.mu.Unlock()
			return err
		}
		if depInst.State == StateError {
			err := fmt.Errorf("plugin %q: dependency %q failed to load", name, dep)
			inst.State = StateError
			inst.Err = err
			m.mu.Unlock()
			return err
		}
	}

	factory, ok := m.factories[inst.Manifest.Main]
	if !ok {
		err := fmt.Errorf("%w: %q (plugin %s)", ErrFactoryNotFound, inst.Manifest.Main, name)
		inst.State = StateError
		inst.Err = err
		m.mu.Unlock()
		return err
	}
	manifest := inst.Manifest
	m.mu.Unlock()

	p, err := factory(manifest.Config)
	if err == nil {
		if init, ok := p.(Initializer); ok {
			err = init.Init(ctx)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		inst.State = StateError
		inst.Err = err
		return fmt.Errorf("loading plugin %q: %w", name, err)
	}

	inst.plugin = p
	inst.hooks = ResolveHooks(p, manifest)
	inst.State = StateLoaded
	inst.Err = nil
	m.logger.Info("plugin loaded",
		"plugin", name,
		"version", manifest.Version,
		"type", manifest.Type,
		"hooks", inst.hooks.Kind)
	return nil
}

// sortByDependenciesLocked topologically orders instances so dependencies
// come first. Nodes left over after the sort form cycles; they are logged
// and appended in name order, which drops the cyclic edges.
func (m *Manager) sortByDependenciesLocked(insts []*Instance) []*Instance {
	byName := make(map[string]*Instance, len(insts))
	indegree := make(map[string]int, len(insts))
	dependents := make(map[string][]string, len(insts))

	for _, inst := range insts {
		byName[inst.Manifest.Name] = inst
		indegree[inst.Manifest.Name] = 0
	}
	for _, inst := range insts {
		for _, dep := range inst.Manifest.Dependencies {
			if _, known := byName[dep]; !known {
				continue
			}
			indegree[inst.Manifest.Name]++
			dependents[dep] = append(dependents[dep], inst.Manifest.Name)
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []*Instance
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, byName[name])
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
	}

	if len(order) < len(insts) {
		var cyclic []string
		for name := range byName {
			if indegree[name] > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		m.logger.Warn("plugin dependency cycle detected, loading cyclic plugins in name order",
			"plugins", cyclic)
		for _, name := range cyclic {
			order = append(order, byName[name])
		}
	}
	return order
}

// ============================================================================
// Enable / disable / unload
// ============================================================================

// Enable moves a loaded or disabled plugin to enabled, registering its
// hooks and capabilities. Enabling also clears the sandbox's consecutive
// failure counter, so an operator re-enable gives the plugin a clean
// slate.
func (m *Manager) Enable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.plugins[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if inst.State != StateLoaded && inst.State != StateDisabled {
		return fmt.Errorf("%w: cannot enable plugin %q from state %s", ErrInvalidTransition, name, inst.State)
	}

	m.sandbox.Enable(name)
	m.registerLocked(inst)
	inst.State = StateEnabled
	m.logger.Info("plugin enabled", "plugin", name)
	return nil
}

// EnableAll enables every loaded plugin.
func (m *Manager) EnableAll() error {
	m.mu.RLock()
	var names []string
	for name, inst := range m.plugins {
		if inst.State == StateLoaded {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	sort.Strings(names)

	var firstErr error
	for _, name := range names {
		if err := m.Enable(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Disable moves an enabled plugin to disabled, reversing exactly the
// registration Enable performed.
func (m *Manager) Disable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.plugins[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if inst.State != StateEnabled {
		return fmt.Errorf("%w: cannot disable plugin %q from state %s", ErrInvalidTransition, name, inst.State)
	}

	m.sandbox.Disable(name)
	m.deregisterLocked(inst)
	inst.State = StateDisabled
	m.logger.Info("plugin disabled", "plugin", name)
	return nil
}

// Unload tears a plugin down from any state back to discovered, releasing
// its resources and dropping its sandbox history.
func (m *Manager) Unload(name string) error {
	m.mu.Lock()
	inst, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}

	if inst.State == StateEnabled {
		m.deregisterLocked(inst)
	}
	p := inst.plugin
	inst.plugin = nil
	inst.hooks = nil
	inst.State = StateDiscovered
	inst.Err = nil
	m.mu.Unlock()

	m.sandbox.Forget(name)

	if closer, ok := p.(Closer); ok {
		if err := closer.Close(); err != nil {
			m.logger.Warn("plugin close failed", "plugin", name, "error", err)
			return err
		}
	}
	m.logger.Info("plugin unloaded", "plugin", name)
	return nil
}

// handleAutoDisable mirrors a sandbox-initiated disable into the
// lifecycle state.
func (m *Manager) handleAutoDisable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.plugins[name]
	if !ok || inst.State != StateEnabled {
		return
	}
	m.deregisterLocked(inst)
	inst.State = StateDisabled
}

// registerLocked adds the plugin's hooks and capabilities. Caller holds
// m.mu.
func (m *Manager) registerLocked(inst *Instance) {
	name := inst.Manifest.Name

	if d, ok := inst.plugin.(SpanDetector); ok {
		m.detectors[name] = d
	}
	if f, ok := inst.plugin.(Formatter); ok {
		m.formatters[name] = f
	}
	if c, ok := inst.plugin.(AlertChannel); ok {
		m.channels[name] = c
	}

	if inst.hooks.Kind != HookKindNone {
		m.execList = append(m.execList, inst.hooks)
		sort.SliceStable(m.execList, func(i, j int) bool {
			if m.execList[i].Priority != m.execList[j].Priority {
				return m.execList[i].Priority < m.execList[j].Priority
			}
			return m.execList[i].PluginName < m.execList[j].PluginName
		})
	}
}

// deregisterLocked reverses registerLocked. Caller holds m.mu.
func (m *Manager) deregisterLocked(inst *Instance) {
	name := inst.Manifest.Name
	delete(m.detectors, name)
	delete(m.formatters, name)
	delete(m.channels, name)

	for i, hs := range m.execList {
		if hs.PluginName == name {
			m.execList = append(m.execList[:i], m.execList[i+1:]...)
			break
		}
	}
}

// ============================================================================
// Accessors
// ============================================================================

// Get returns the lifecycle view of one plugin.
func (m *Manager) Get(name string) (InstanceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.plugins[name]
	if !ok {
		return InstanceInfo{}, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	return instanceInfo(inst), nil
}

// List returns all plugins sorted by name.
func (m *Manager) List() []InstanceInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]InstanceInfo, 0, len(m.plugins))
	for _, inst := range m.plugins {
		infos = append(infos, instanceInfo(inst))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Detectors returns enabled detector capabilities keyed by plugin name.
func (m *Manager) Detectors() map[string]SpanDetector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]SpanDetector, len(m.detectors))
	for k, v := range m.detectors {
		out[k] = v
	}
	return out
}

// Formatters returns enabled formatter capabilities keyed by plugin name.
func (m *Manager) Formatters() map[string]Formatter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Formatter, len(m.formatters))
	for k, v := range m.formatters {
		out[k] = v
	}
	return out
}

// Channels returns enabled alert channels keyed by plugin name.
func (m *Manager) Channels() map[string]AlertChannel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]AlertChannel, len(m.channels))
	for k, v := range m.channels {
		out[k] = v
	}
	return out
}

// Metrics returns the aggregate metrics export.
func (m *Manager) Metrics() MetricsReport {
	report := m.sandbox.Report()

	m.mu.RLock()
	report.TotalPlugins = len(m.plugins)
	for _, inst := range m.plugins {
		if inst.State == StateEnabled {
			report.EnabledPlugins++
		}
	}
	m.mu.RUnlock()
	return report
}

func instanceInfo(inst *Instance) InstanceInfo {
	info := InstanceInfo{
		Name:     inst.Manifest.Name,
		Version:  inst.Manifest.Version,
		Type:     inst.Manifest.Type,
		State:    inst.State,
		Priority: inst.Manifest.EffectivePriority(),
	}
	if inst.Err != nil {
		info.Error = inst.Err.Error()
	}
	return info
}

// ============================================================================
// Hook dispatch
// ============================================================================

// hooksAscending snapshots the execution list in ascending priority
// order. The copy keeps dispatch free of the manager lock, so a sandbox
// auto-disable can update lifecycle state mid-pass.
func (m *Manager) hooksAscending() []*HookSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*HookSet, len(m.execList))
	copy(out, m.execList)
	return out
}

func (m *Manager) hooksDescending() []*HookSet {
	asc := m.hooksAscending()
	for i, j := 0, len(asc)-1; i < j; i, j = i+1, j-1 {
		asc[i], asc[j] = asc[j], asc[i]
	}
	return asc
}

// RunPreProcess runs the preProcess stage. Legacy beforeRedaction hooks
// run here against the document text. Failed hooks keep the pre-hook
// document unless FailFast is configured.
func (m *Manager) RunPreProcess(ctx context.Context, doc *Document) (*Document, error) {
	for _, hs := range m.hooksAscending() {
		switch {
		case hs.PreProcess != nil:
			res := m.sandbox.Execute(ctx, hs.PluginName, "preProcess", hs.Timeout, func(ctx context.Context) (any, error) {
				return hs.PreProcess.PreProcess(ctx, doc)
			})
			if res.Success {
				if next, ok := res.Value.(*Document); ok && next != nil {
					doc = next
				}
			} else if err := m.stageFailure(res); err != nil {
				return doc, err
			}

		case hs.BeforeRedaction != nil:
			res := m.sandbox.Execute(ctx, hs.PluginName, "beforeRedaction", hs.Timeout, func(ctx context.Context) (any, error) {
				return hs.BeforeRedaction.BeforeRedaction(ctx, doc.Text)
			})
			if res.Success {
				if text, ok := res.Value.(string); ok {
					next := *doc
					next.Text = text
					doc = &next
				}
			} else if err := m.stageFailure(res); err != nil {
				return doc, err
			}
		}
	}
	return doc, nil
}

// RunCanShortCircuit asks each plugin, in ascending priority order,
// whether it wants to terminate the pipeline. The first non-nil result
// wins and is returned along with the deciding plugin's name.
func (m *Manager) RunCanShortCircuit(ctx context.Context, doc *Document) (*Result, string, error) {
	for _, hs := range m.hooksAscending() {
		if hs.ShortCircuit == nil {
			continue
		}
		res := m.sandbox.Execute(ctx, hs.PluginName, "canShortCircuit", hs.Timeout, func(ctx context.Context) (any, error) {
			return hs.ShortCircuit.CanShortCircuit(ctx, doc)
		})
		if res.Success {
			if result, ok := res.Value.(*Result); ok && result != nil {
				m.sandbox.RecordShortCircuit(hs.PluginName)
				result.ShortCircuited = true
				return result, hs.PluginName, nil
			}
		} else if err := m.stageFailure(res); err != nil {
			return nil, "", err
		}
	}
	return nil, "", nil
}

// RunPostDetection runs the postDetection stage over the span list.
func (m *Manager) RunPostDetection(ctx context.Context, spans []span.Span, doc *Document) ([]span.Span, error) {
	return m.runSpanStage(ctx, "postDetection", spans, doc, func(hs *HookSet) func(context.Context, []span.Span, *Document) ([]span.Span, error) {
		if hs.PostDetection == nil {
			return nil
		}
		return hs.PostDetection.PostDetection
	})
}

// RunPreRedaction runs the preRedaction stage over the span list.
func (m *Manager) RunPreRedaction(ctx context.Context, spans []span.Span, doc *Document) ([]span.Span, error) {
	return m.runSpanStage(ctx, "preRedaction", spans, doc, func(hs *HookSet) func(context.Context, []span.Span, *Document) ([]span.Span, error) {
		if hs.PreRedaction == nil {
			return nil
		}
		return hs.PreRedaction.PreRedaction
	})
}

func (m *Manager) runSpanStage(
	ctx context.Context,
	hookName string,
	spans []span.Span,
	doc *Document,
	pick func(*HookSet) func(context.Context, []span.Span, *Document) ([]span.Span, error),
) ([]span.Span, error) {
	for _, hs := range m.hooksAscending() {
		fn := pick(hs)
		if fn == nil {
			continue
		}
		res := m.sandbox.Execute(ctx, hs.PluginName, hookName, hs.Timeout, func(ctx context.Context) (any, error) {
			return fn(ctx, spans, doc)
		})
		if res.Success {
			if next, ok := res.Value.([]span.Span); ok {
				spans = next
			}
		} else if err := m.stageFailure(res); err != nil {
			return spans, err
		}
	}
	return spans, nil
}

// RunPostRedaction runs the postRedaction stage in descending priority
// order, so the highest-priority plugin sees the result last. Legacy
// afterRedaction hooks run here.
func (m *Manager) RunPostRedaction(ctx context.Context, result *Result) (*Result, error) {
	for _, hs := range m.hooksDescending() {
		switch {
		case hs.PostRedaction != nil:
			res := m.sandbox.Execute(ctx, hs.PluginName, "postRedaction", hs.Timeout, func(ctx context.Context) (any, error) {
				return hs.PostRedaction.PostRedaction(ctx, result)
			})
			if res.Success {
				if next, ok := res.Value.(*Result); ok && next != nil {
					result = next
				}
			} else if err := m.stageFailure(res); err != nil {
				return result, err
			}

		case hs.AfterRedaction != nil:
			res := m.sandbox.Execute(ctx, hs.PluginName, "afterRedaction", hs.Timeout, func(ctx context.Context) (any, error) {
				return hs.AfterRedaction.AfterRedaction(ctx, result)
			})
			if res.Success {
				if next, ok := res.Value.(*Result); ok && next != nil {
					result = next
				}
			} else if err := m.stageFailure(res); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// stageFailure decides whether a hook failure aborts the stage. Disabled
// plugins are skipped silently; other failures abort only under FailFast.
func (m *Manager) stageFailure(res ExecResult) error {
	if res.PluginDisabled {
		return nil
	}
	if m.config.FailFast {
		return res.Err
	}
	return nil
}
