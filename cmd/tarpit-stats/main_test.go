package main

import (
	"strings"
	"testing"
	"time"
)

const sampleLog = `
{"level":"info","msg":"listen","addr":"0.0.0.0:2222","time":"2026-08-20T10:00:00Z"}
{"level":"info","msg":"connect","peer":"192.0.2.10:40001","clients":1,"time":"2026-08-20T10:00:01Z"}
{"level":"info","msg":"disconnect","peer":"192.0.2.10:40001","duration":"1m30s","bytes":180,"cause":"disconnected","clients":0,"country":"NL","time":"2026-08-20T10:01:31Z"}
{"level":"info","msg":"disconnect","peer":"192.0.2.10:40002","duration":"30s","bytes":60,"cause":"timeout","clients":0,"time":"2026-08-20T10:05:00Z"}
{"level":"info","msg":"disconnect","peer":"198.51.100.7:55000","duration":"10s","bytes":23,"cause":"cancelled","clients":0,"time":"2026-08-20T10:06:00Z"}
not json at all
{"level":"info","msg":"reject","peer":"192.0.2.99:1234","clients":2,"time":"2026-08-20T10:06:01Z"}
`

func TestAggregate(t *testing.T) {
	peers, causes, totalBytes, totalWasted, err := aggregate(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if len(peers) != 2 {
		t.Fatalf("unique peers = %d, want 2", len(peers))
	}

	p := peers["192.0.2.10"]
	if p == nil {
		t.Fatal("missing peer 192.0.2.10")
	}
	if p.Sessions != 2 {
		t.Errorf("sessions = %d, want 2", p.Sessions)
	}
	if p.Bytes != 240 {
		t.Errorf("bytes = %d, want 240", p.Bytes)
	}
	if p.Wasted != 2*time.Minute {
		t.Errorf("wasted = %s, want 2m0s", p.Wasted)
	}
	if p.Country != "NL" {
		t.Errorf("country = %q, want NL", p.Country)
	}

	if totalBytes != 263 {
		t.Errorf("total bytes = %d, want 263", totalBytes)
	}
	if totalWasted != 2*time.Minute+10*time.Second {
		t.Errorf("total wasted = %s, want 2m10s", totalWasted)
	}

	if causes["disconnected"] != 1 || causes["timeout"] != 1 || causes["cancelled"] != 1 {
		t.Errorf("cause breakdown = %v", causes)
	}
}

func TestReportOutput(t *testing.T) {
	peers, causes, totalBytes, totalWasted, err := aggregate(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	var sb strings.Builder
	report(&sb, peers, causes, totalBytes, totalWasted, 10)
	out := sb.String()

	for _, want := range []string{"sessions: 3", "unique peers: 2", "192.0.2.10", "timeout", "NL"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
