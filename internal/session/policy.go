package session

// ApprovalPolicy controls when a privileged operation needs user sign-off.
type ApprovalPolicy string

const (
	ApprovalUnlessTrusted ApprovalPolicy = "unless-trusted"
	ApprovalOnFailure     ApprovalPolicy = "on-failure"
	ApprovalOnRequest     ApprovalPolicy = "on-request"
	ApprovalNever         ApprovalPolicy = "never"
)

// SandboxMode selects the sandbox adapter used for exec and patch-apply.
type SandboxMode string

const (
	SandboxDangerFullAccess SandboxMode = "danger-full-access"
	SandboxReadOnly         SandboxMode = "read-only"
	SandboxWorkspaceWrite   SandboxMode = "workspace-write"
)

// WorkspaceWriteConfig parameterizes SandboxWorkspaceWrite.
type WorkspaceWriteConfig struct {
	WritableRoots     []string
	NetworkAccess     bool
	ExcludeTmpdir     bool
	ExcludeSlashTmp   bool
	AllowGitWrites    bool
}

// SandboxPolicy bundles the selected mode with its workspace-write
// parameters (ignored for the other two modes).
type SandboxPolicy struct {
	Mode      SandboxMode
	Workspace WorkspaceWriteConfig
}
