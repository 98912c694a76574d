package task

import (
	"testing"

	"github.com/choudian/document-QA-system/internal/config"
)

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(nil, nil, &config.WorkerConfig{})
	if r.concurrency != 4 {
		t.Errorf("concurrency = %d, want default 4", r.concurrency)
	}
	if r.parseRetries != 3 {
		t.Errorf("parseRetries = %d, want default 3", r.parseRetries)
	}
	if cap(r.queue) != 256 {
		t.Errorf("queue capacity = %d, want default 256", cap(r.queue))
	}
}

func TestNewRunnerExplicitConfig(t *testing.T) {
	r := NewRunner(nil, nil, &config.WorkerConfig{Concurrency: 2, ParseRetries: 1, QueueCapacity: 8})
	if r.concurrency != 2 || r.parseRetries != 1 || cap(r.queue) != 8 {
		t.Errorf("runner = {concurrency:%d retries:%d cap:%d}, want {2 1 8}", r.concurrency, r.parseRetries, cap(r.queue))
	}
}
