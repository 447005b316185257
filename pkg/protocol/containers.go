package protocol

// ContainerKind distinguishes the safe-DSL sandbox from a general-purpose
// container resource (§4.5 Safe-DSL execution requires kind SandboxedDSL).
type ContainerKind string

const (
	ContainerSandboxedDSL ContainerKind = "SandboxedDSL"
	ContainerGeneral      ContainerKind = "General"
)

// ShellKind is the closed set of interpreters the dangerous-shell executor
// may spawn (§4.5).
type ShellKind string

const (
	ShellBash                   ShellKind = "Bash"
	ShellPowerShellCrossPlatform ShellKind = "PowerShellCrossPlatform"
	ShellCommandPromptWindows    ShellKind = "CommandPromptWindows"
	ShellGitSubcommand           ShellKind = "GitSubcommand"
)

// Interpreter returns the argv[0] (and leading flags) used to invoke this
// shell kind, with the script appended as the final argument.
func (k ShellKind) Interpreter() (argv0 string, flags []string, ok bool) {
	switch k {
	case ShellBash:
		return "bash", []string{"-c"}, true
	case ShellPowerShellCrossPlatform:
		return "pwsh", []string{"-NoProfile", "-Command"}, true
	case ShellCommandPromptWindows:
		return "cmd.exe", []string{"/C"}, true
	case ShellGitSubcommand:
		return "git", nil, true
	}
	return "", nil, false
}
