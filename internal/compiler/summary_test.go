package compiler

import "testing"

func TestSummarize_ExtractsProgramTypeAndPorts(t *testing.T) {
	artifact := []byte(`
		var app = $elm$browser$Browser$element({init: $author$project$Main$init});
		_Platform_incomingPort("fromJs", something);
		_Platform_outgoingPort("toJs", somethingElse);
	`)
	sum := Summarize(artifact)
	if sum.ProgramType != "element" {
		t.Fatalf("expected element, got %q", sum.ProgramType)
	}
	if _, ok := sum.Ports["fromJs"]; !ok {
		t.Fatalf("expected fromJs port, got %+v", sum.Ports)
	}
	if _, ok := sum.Ports["toJs"]; !ok {
		t.Fatalf("expected toJs port, got %+v", sum.Ports)
	}
}

func TestSummarize_UnknownProgramTypeWhenNoMarker(t *testing.T) {
	sum := Summarize([]byte("plain text with no compiler markers"))
	if sum.ProgramType != "unknown" {
		t.Fatalf("expected unknown, got %q", sum.ProgramType)
	}
}

func TestSummarize_IdenticalArtifactsProduceEqualHashes(t *testing.T) {
	artifact := []byte(`_Json_decodeString(x); init: $author$project$Main$init`)
	a := Summarize(artifact)
	b := Summarize(artifact)
	if a.FlagsDecoderHash != b.FlagsDecoderHash || a.InitModelHash != b.InitModelHash {
		t.Fatal("expected identical artifacts to produce identical hashes")
	}
}

func TestSummarize_DifferingInitProducesDifferentHash(t *testing.T) {
	a := Summarize([]byte(`init: $author$project$Main$init`))
	b := Summarize([]byte(`init: $author$project$Main$init2`))
	if a.InitModelHash == b.InitModelHash {
		t.Fatal("expected differing init markers to hash differently")
	}
}
