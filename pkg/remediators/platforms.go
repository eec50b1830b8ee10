package remediators

import (
	"fmt"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// Built-in platform identifiers.
const (
	PlatformLinux   = "Linux"
	PlatformMac     = "Mac"
	PlatformWindows = "Windows"
	PlatformAndroid = "Android"
)

// BuiltinHandlers returns fresh handlers for the built-in platforms. Actions
// are ordered update, restart, cleanup, reboot.
func BuiltinHandlers() []*PlatformHandler {
	specs := []struct {
		platform string
		actions  []types.RemedialAction
	}{
		{PlatformLinux, []types.RemedialAction{
			{
				Label:        "Apply system updates",
				Category:     types.CategorySystemUpdate,
				RequiredTool: "apt-get",
				Command:      []string{"sh", "-c", "apt-get update -y && apt-get upgrade -y"},
			},
			{
				Label:        "Restart SSH service",
				Category:     types.CategoryServiceRestart,
				RequiredTool: "service",
				Command:      []string{"service", "ssh", "restart"},
				OutputChecks: []types.OutputCheck{{
					Contains: "unrecognized service",
					Status:   types.StatusSimulated,
					Detail:   "ssh service not installed",
				}},
			},
			{
				Label:        "Clear temporary files",
				Category:     types.CategoryDiskCleanup,
				RequiredTool: "find",
				Command:      []string{"find", "/var/tmp", "-mindepth", "1", "-delete"},
			},
		}},
		{PlatformMac, []types.RemedialAction{
			{
				Label:        "Apply OS updates",
				Category:     types.CategorySystemUpdate,
				RequiredTool: "softwareupdate",
				Command:      []string{"softwareupdate", "-i", "-a"},
			},
			{
				Label:        "Restart Apache",
				Category:     types.CategoryServiceRestart,
				RequiredTool: "apachectl",
				Command:      []string{"sudo", "apachectl", "restart"},
			},
			{
				Label:        "Clear temporary files",
				Category:     types.CategoryDiskCleanup,
				RequiredTool: "find",
				Command:      []string{"find", "/tmp", "-mindepth", "1", "-delete"},
			},
		}},
		{PlatformWindows, []types.RemedialAction{
			{
				Label:        "Install Windows updates",
				Category:     types.CategorySystemUpdate,
				RequiredTool: "powershell",
				Command:      []string{"powershell", "-Command", "Install-WindowsUpdate -AcceptAll"},
			},
			{
				Label:        "Restart IIS",
				Category:     types.CategoryServiceRestart,
				RequiredTool: "powershell",
				Command:      []string{"powershell", "-Command", "Restart-Service -Name 'W3SVC'"},
			},
			{
				Label:        "Run disk cleanup",
				Category:     types.CategoryDiskCleanup,
				RequiredTool: "powershell",
				Command:      []string{"powershell", "-Command", "cleanmgr /sagerun:1"},
			},
		}},
		{PlatformAndroid, []types.RemedialAction{
			{
				Label:        "Clear app data",
				Category:     types.CategoryDiskCleanup,
				RequiredTool: "adb",
				Command:      []string{"adb", "shell", "pm", "clear", "com.example.app"},
				OutputChecks: []types.OutputCheck{{
					Contains: "no devices/emulators found",
					Status:   types.StatusFailed,
					Detail:   "no Android device connected",
				}},
			},
			{
				Label:        "Reboot device",
				Category:     types.CategoryDeviceReboot,
				RequiredTool: "adb",
				Command:      []string{"adb", "reboot"},
				OutputChecks: []types.OutputCheck{{
					Contains: "no devices/emulators found",
					Status:   types.StatusFailed,
					Detail:   "no Android device connected",
				}},
			},
		}},
	}

	handlers := make([]*PlatformHandler, 0, len(specs))
	for _, s := range specs {
		h, err := NewPlatformHandler(s.platform, s.actions...)
		if err != nil {
			// built-in definitions are static
			panic(fmt.Sprintf("invalid built-in handler %s: %v", s.platform, err))
		}
		handlers = append(handlers, h)
	}
	return handlers
}

// RegisterBuiltins registers every built-in handler with registry.
func RegisterBuiltins(registry *Registry) error {
	for _, h := range BuiltinHandlers() {
		if err := registry.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// HandlersFromConfig builds handlers for platforms declared in configuration.
func HandlersFromConfig(platforms []types.PlatformConfig) ([]*PlatformHandler, error) {
	handlers := make([]*PlatformHandler, 0, len(platforms))
	for _, p := range platforms {
		actions := make([]types.RemedialAction, 0, len(p.Actions))
		for _, ac := range p.Actions {
			a, err := ac.ToAction()
			if err != nil {
				return nil, fmt.Errorf("platform %q: %w", p.Name, err)
			}
			actions = append(actions, a)
		}
		h, err := NewPlatformHandler(p.Name, actions...)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

// BuildRegistry registers the built-in handlers followed by the configured
// ones and seals the result. A configured platform that reuses a built-in
// identifier fails with types.ErrDuplicatePlatform.
func BuildRegistry(platforms []types.PlatformConfig, logger Logger) (*Registry, error) {
	registry := NewRegistry()
	registry.SetLogger(logger)

	if err := RegisterBuiltins(registry); err != nil {
		return nil, err
	}

	extra, err := HandlersFromConfig(platforms)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	for _, h := range extra {
		if err := registry.Register(h); err != nil {
			return nil, err
		}
	}

	registry.Seal()
	return registry, nil
}
