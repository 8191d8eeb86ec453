package wirename

import "strings"

// MaxLength is the maximum length of a registry wire name.
const MaxLength = 64

const (
	// BridgePrefix marks wire names that address bridge tools.
	BridgePrefix = "bridge--"

	separator = "--"

	// Organizational package prefixes stripped by Encode, longest first.
	orgToolsPrefix = "tpmjs-tools-"
	orgPrefix      = "tpmjs-"

	// Scoped spellings restored by Decode when producing candidates.
	scopedToolsPrefix = "@tpmjs/tools-"
	scopedOrgPrefix   = "@tpmjs/"

	// Conventional suffix on registry tool export names.
	toolSuffix = "Tool"
)

// Kind discriminates decoded identities.
type Kind string

const (
	// KindRegistry identifies a tool executed by the registry executor.
	KindRegistry Kind = "registry"
	// KindBridge identifies a tool delegated to a user's bridge poller.
	KindBridge Kind = "bridge"
)

// Identity is the decoded form of a wire name.
type Identity interface {
	Kind() Kind
}

// Compile-time verification that all identity types implement Identity.
var (
	_ Identity = (*RegistryIdentity)(nil)
	_ Identity = (*BridgeIdentity)(nil)
)

// RegistryIdentity addresses a registry tool. Because Encode is lossy,
// PackageCandidates holds the possible package names in preference order;
// consumers try them against the catalog and accept the first match. An
// empty candidate list means the wire name carried no package portion.
type RegistryIdentity struct {
	PackageCandidates []string
	ToolName          string
}

// Kind implements Identity.
func (i *RegistryIdentity) Kind() Kind { return KindRegistry }

// BridgeIdentity addresses a bridge tool on a specific server.
type BridgeIdentity struct {
	ServerID string
	ToolName string
}

// Kind implements Identity.
func (i *BridgeIdentity) Kind() Kind { return KindBridge }

// Encode produces the wire name for a registry tool.
//
// The package name is flattened (leading "@" dropped, "/" replaced with "-"),
// known organizational prefixes are stripped, and the conventional "Tool"
// suffix is removed from the tool name. The parts are joined with a double
// dash. If the result exceeds MaxLength, the package portion is truncated
// first, reserving the separator and the full tool name; only if that still
// does not fit is the joined string hard-truncated.
//
// Example:
//
//	Encode("@tpmjs/tools-sprites-get", "spritesGetTool") // "sprites-get--spritesGet"
func Encode(packageName, toolName string) string {
	pkg := strings.TrimPrefix(packageName, "@")
	pkg = strings.ReplaceAll(pkg, "/", "-")

	if trimmed := strings.TrimPrefix(pkg, orgToolsPrefix); trimmed != pkg {
		pkg = trimmed
	} else {
		pkg = strings.TrimPrefix(pkg, orgPrefix)
	}

	pkg = sanitizePart(pkg)
	tool := sanitizePart(strings.TrimSuffix(toolName, toolSuffix))

	name := pkg + separator + tool
	if len(name) <= MaxLength {
		return name
	}

	// Truncate the package portion first, keeping the tool name whole.
	keep := MaxLength - len(separator) - len(tool)
	if keep > 0 && keep < len(pkg) {
		name = pkg[:keep] + separator + tool
	}

	if len(name) > MaxLength {
		name = name[:MaxLength]
	}

	return name
}

// EncodeBridge produces the wire name for a bridge tool.
//
// Each part has out-of-charset characters replaced with "-"; the parts are
// joined under the fixed bridge prefix. Unlike Encode this transform is
// reversible: Decode recovers serverID and toolName exactly, provided the
// server ID does not itself contain a double dash.
//
// Example:
//
//	EncodeBridge("chrome-devtools", "screenshot") // "bridge--chrome-devtools--screenshot"
func EncodeBridge(serverID, toolName string) string {
	return BridgePrefix + sanitizePart(serverID) + separator + sanitizePart(toolName)
}

// Decode parses a wire name back into a tool identity. It never fails: names
// it cannot interpret decode to an identity whose catalog lookup will simply
// find nothing.
//
// Bridge names are recognized by prefix and split at the first double dash
// after it. Registry names split at the last double dash; the conventional
// "Tool" suffix is restored if absent, and the candidate packages are, in
// order: the long organizational prefix restored, the short prefix restored,
// a scoped reconstruction treating the first dash as the scope boundary, and
// the literal package portion.
//
// Example:
//
//	Decode("sprites-get--spritesGet")
//	// RegistryIdentity{
//	//   PackageCandidates: ["@tpmjs/tools-sprites-get", "@tpmjs/sprites-get", "@sprites/get", "sprites-get"],
//	//   ToolName: "spritesGetTool",
//	// }
func Decode(wireName string) Identity {
	if rest, ok := strings.CutPrefix(wireName, BridgePrefix); ok {
		serverID, toolName, found := strings.Cut(rest, separator)
		if !found {
			return &BridgeIdentity{ServerID: rest}
		}

		return &BridgeIdentity{ServerID: serverID, ToolName: toolName}
	}

	idx := strings.LastIndex(wireName, separator)
	if idx < 0 {
		return &RegistryIdentity{ToolName: restoreToolSuffix(wireName)}
	}

	pkgPart := wireName[:idx]
	toolName := restoreToolSuffix(wireName[idx+len(separator):])

	if pkgPart == "" {
		return &RegistryIdentity{ToolName: toolName}
	}

	candidates := make([]string, 0, 4)
	candidates = append(candidates, scopedToolsPrefix+pkgPart, scopedOrgPrefix+pkgPart)

	if scope, remainder, ok := strings.Cut(pkgPart, "-"); ok && scope != "" && remainder != "" {
		candidates = append(candidates, "@"+scope+"/"+remainder)
	}

	candidates = append(candidates, pkgPart)

	return &RegistryIdentity{PackageCandidates: candidates, ToolName: toolName}
}

// restoreToolSuffix appends the conventional "Tool" suffix unless already
// present.
func restoreToolSuffix(name string) string {
	if strings.HasSuffix(name, toolSuffix) {
		return name
	}

	return name + toolSuffix
}

// sanitizePart replaces every character outside [a-zA-Z0-9_-] with "-".
func sanitizePart(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
