package ingest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDegradation_CountsAndSamples(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	d := NewDegradation(2)
	for range 5 {
		d.Record("amount", "ocds-1", "abc")
	}
	d.Record("date_signed", "ocds-2", "31/02/2021")

	assert.Equal(t, map[string]int{"amount": 5, "date_signed": 1}, d.Counts())
	assert.Equal(t, 6, d.Total())
	assert.Equal(t, []string{"amount", "date_signed"}, d.Fields())
	// Two sampled amount warnings plus one date warning.
	assert.Equal(t, 3, logs.Len())
}

func TestDegradation_Observe(t *testing.T) {
	d := NewDegradation(0)
	assert.False(t, d.Observe(Parsed, "amount", "k", "1"))
	assert.False(t, d.Observe(Missing, "amount", "k", ""))
	assert.True(t, d.Observe(Degraded, "amount", "k", "x"))
	assert.Equal(t, 1, d.Total())
}

func TestDegradation_Nil(t *testing.T) {
	var d *Degradation
	d.Record("amount", "k", "x")
	assert.Empty(t, d.Counts())
	assert.Zero(t, d.Total())
}

func TestDegradation_Concurrent(t *testing.T) {
	d := NewDegradation(0)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				d.Record("amount", "k", "x")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, d.Counts()["amount"])
}
