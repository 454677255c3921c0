// Package plugin implements the extension system: manifest discovery,
// lifecycle management, hook execution, and sandboxing.
//
// # Lifecycle
//
// Plugins move through discovered -> loaded -> enabled <-> disabled, with
// error reachable from any transition and unload tearing back down toward
// discovered. Discovery reads one manifest.json per plugin directory;
// loading resolves the manifest's entry point against a factory registry
// and topologically sorts plugins so dependencies load first.
//
// # Hooks
//
// A plugin's hook surface is resolved once at registration into a HookSet
// tagged modern or legacy, never re-checked per call. Modern hooks run at
// five pipeline stages (PreProcess, CanShortCircuit, PostDetection,
// PreRedaction, PostRedaction); the legacy pair (BeforeRedaction,
// AfterRedaction) is supported in parallel for older plugins.
//
// # Sandbox
//
// Every hook call runs through the Sandbox, which races completion
// against the hook's timeout, records per-plugin metrics, and
// auto-disables a plugin after too many consecutive failures. A timed-out
// hook is abandoned from the caller's perspective; its context is
// cancelled so well-behaved hooks stop early, but the sandbox does not
// wait for them.
package plugin
