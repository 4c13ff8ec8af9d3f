// Package metric provides Prometheus-based metrics for the flow runtime.
//
// A MetricsRegistry carries the runtime-level metrics (node lifecycle,
// packet traffic, main-loop load) plus any scope-specific metrics
// registered through the MetricsRegistrar interface. The Server type
// exposes a registry over HTTP in Prometheus format.
//
// The packet dispatch path itself never touches this package; the
// inspect package observes dispatch through the flow inspector hooks and
// records into a registry from there. Keeping the two decoupled means a
// process that wants no metrics simply never installs the inspector.
//
// Basic usage:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Fatal(err)
//	    }
//	}()
//	defer server.Stop()
package metric
