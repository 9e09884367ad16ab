// Package health runs readiness probes against the service's dependencies.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Probe checks one dependency.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// SQLProbe pings a database/sql handle.
type SQLProbe struct {
	DB *sql.DB
}

func (p SQLProbe) Name() string {
	return "database"
}

func (p SQLProbe) Check(ctx context.Context) error {
	if err := p.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// FuncProbe adapts a ping function.
type FuncProbe struct {
	ProbeName string
	Ping      func(ctx context.Context) error
}

func (p FuncProbe) Name() string {
	return p.ProbeName
}

func (p FuncProbe) Check(ctx context.Context) error {
	return p.Ping(ctx)
}

// Report is the outcome of a readiness check, keyed by probe name.
type Report struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

type Checker struct {
	probes  []Probe
	timeout time.Duration
}

func NewChecker(timeout time.Duration, probes ...Probe) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{probes: probes, timeout: timeout}
}

// Check runs all probes concurrently.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	report := Report{Ready: true, Checks: make(map[string]string, len(c.probes))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, p := range c.probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			status := "ok"
			err := p.Check(ctx)
			if err != nil {
				status = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			report.Checks[p.Name()] = status
			if err != nil {
				report.Ready = false
			}
		}(p)
	}
	wg.Wait()

	return report
}
