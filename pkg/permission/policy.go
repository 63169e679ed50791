// Package permission decides which agent tool-permission requests the
// launcher answers on its own. Only read-only lookups through the launcher
// CLI are auto-allowed; everything else is surfaced to the user.
package permission

import (
	"strings"

	"golaunch/pkg/protocol"
)

// readLookups are CLI subcommands that only read launcher data.
var readLookups = []string{
	"memory search",
	"memory list",
	"memory get",
	"conversations list",
	"conversations search",
	"conversations show",
	"conversations context",
	"slash-commands list",
	"slash-commands get",
}

// writeOps disqualify a preview even when it also contains a lookup.
var writeOps = []string{
	"memory add",
	"memory remove",
	"delete",
}

// Policy auto-allows read-only launcher CLI lookups. The zero value
// matches protocol.CLIName.
type Policy struct {
	// CLIName is the launcher CLI binary the preview must mention.
	CLIName string
}

// AutoAllow returns the option to answer req with when req is a read-only
// lookup and one of its options allows it.
func (p Policy) AutoAllow(req protocol.PermissionRequest) (string, bool) {
	if !p.IsReadLookup(req.CommandPreview) {
		return "", false
	}
	return PickAllowOption(req.Options)
}

// IsReadLookup reports whether preview runs a read-only subcommand of the
// launcher CLI. Pure function, no side effects.
func (p Policy) IsReadLookup(preview string) bool {
	name := p.CLIName
	if name == "" {
		name = protocol.CLIName
	}
	normalized := Normalize(preview)
	if normalized == "" || !strings.Contains(normalized, strings.ToLower(name)) {
		return false
	}
	padded := " " + normalized + " "
	return containsWord(padded, readLookups) && !containsWord(padded, writeOps)
}

// containsWord reports whether padded contains any phrase as whole words.
func containsWord(padded string, phrases []string) bool {
	for _, ph := range phrases {
		if strings.Contains(padded, " "+ph+" ") {
			return true
		}
	}
	return false
}

// Normalize lowercases text and collapses runs of whitespace to one space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// PickAllowOption chooses the option to auto-allow with: the one named
// "Allow", then "Always Allow", then the first whose kind allows.
func PickAllowOption(options []protocol.PermissionOption) (string, bool) {
	for _, name := range []string{"Allow", "Always Allow"} {
		for _, o := range options {
			if strings.EqualFold(o.Name, name) {
				return o.OptionID, true
			}
		}
	}
	for _, o := range options {
		if IsAllowKind(o.Kind) {
			return o.OptionID, true
		}
	}
	return "", false
}

// IsAllowKind reports whether an option kind grants the request, e.g.
// "AllowOnce" or "allow_always" but not "RejectOnce".
func IsAllowKind(kind string) bool {
	k := strings.ToLower(kind)
	return strings.Contains(k, "allow") && !strings.Contains(k, "reject") && !strings.Contains(k, "deny")
}
