package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"

	"hotproxy/internal/session"
)

// The compiled artifact's textual shape carries the facts
// DecideReload compares, the same way the injector locates its splice
// points by probing for recognizable patterns rather than parsing a
// full AST (compiler.go and inject.go deliberately do not know the
// compiler's grammar, only its conventional output shape).
var (
	programTypePattern = regexp.MustCompile(`\$elm\$browser\$Browser\$(sandbox|element|document|application)`)
	decodeCallPattern  = regexp.MustCompile(`_Json_[A-Za-z0-9_]+\([^)]*\)`)
	debugMarkerPattern = regexp.MustCompile(`_Debug_[A-Za-z0-9_]+`)
	mangledFieldPattern = regexp.MustCompile(`\ba[0-9]+\b`)
	incomingPortPattern = regexp.MustCompile(`_Platform_incomingPort\(\s*["']([A-Za-z0-9_]+)["']`)
	outgoingPortPattern = regexp.MustCompile(`_Platform_outgoingPort\(\s*["']([A-Za-z0-9_]+)["']`)
	initHashPattern     = regexp.MustCompile(`\binit\s*:\s*[A-Za-z0-9_$]+`)
)

// Summarize extracts the small set of facts session.DecideReload needs
// from a compiled artifact's bytes, without hotproxy ever parsing the
// artifact's full grammar.
func Summarize(artifact []byte) session.ArtifactSummary {
	programType := "unknown"
	if m := programTypePattern.FindSubmatch(artifact); m != nil {
		programType = string(m[1])
	}

	return session.ArtifactSummary{
		FlagsDecoderHash:  hashAllMatches(artifact, decodeCallPattern),
		ProgramType:       programType,
		DebugMetadataHash: hashAllMatches(artifact, debugMarkerPattern),
		RecordFields:      toSet(mangledFieldPattern.FindAll(artifact, -1)),
		InitModelHash:     hashAllMatches(artifact, initHashPattern),
		Ports:             portSet(artifact),
	}
}

func hashAllMatches(artifact []byte, pattern *regexp.Regexp) string {
	matches := pattern.FindAll(artifact, -1)
	h := sha256.New()
	for _, m := range matches {
		h.Write(m)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func toSet(matches [][]byte) map[string]struct{} {
	set := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		set[string(m)] = struct{}{}
	}
	return set
}

func portSet(artifact []byte) map[string]struct{} {
	set := make(map[string]struct{})
	for _, m := range incomingPortPattern.FindAllSubmatch(artifact, -1) {
		set[string(m[1])] = struct{}{}
	}
	for _, m := range outgoingPortPattern.FindAllSubmatch(artifact, -1) {
		set[string(m[1])] = struct{}{}
	}
	return set
}

// SortedRecordFields returns a target's RecordFields set in
// deterministic order, for the Artifact delivery message.
func SortedRecordFields(fields map[string]struct{}) []string {
	out := make([]string, 0, len(fields))
	for f := range fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
