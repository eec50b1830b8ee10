// Package remediators holds the per-platform remediation handlers and the
// machinery that runs them.
//
// A PlatformHandler is an ordered list of RemedialActions for one platform
// identifier. Handlers are registered in an explicit Registry at startup;
// after Seal the registry is read-only and safe to share between workers.
// Lookup never fails: unknown platforms resolve to an empty fallback handler.
//
// The Executor runs a handler's actions strictly in order:
//   - a missing RequiredTool records Simulated without invoking anything
//   - a non-zero exit, invocation error or panic records Failed
//   - a command exceeding its timeout records Failed with detail "timeout"
//   - a zero exit records Succeeded unless an OutputCheck downgrades it
//
// A failing action never stops the remaining actions.
//
// Usage Example:
//
//	registry := remediators.NewRegistry()
//	if err := remediators.RegisterBuiltins(registry); err != nil {
//		return err
//	}
//	registry.Seal()
//
//	executor, err := remediators.NewExecutor(remediators.ExecutorConfig{
//		Runner:         remediators.NewExecRunner(),
//		Probe:          remediators.NewPathProbe(),
//		CommandTimeout: 5 * time.Minute,
//	})
//	if err != nil {
//		return err
//	}
//	report := executor.Execute(ctx, "Linux", registry.Lookup("Linux"))
package remediators
