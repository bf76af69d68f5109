// Package metrics records run metrics for warcbuilder.
//
// Components receive a Recorder through dependency injection. By default the
// assembler uses NoopRecorder; the build command swaps in a PrometheusRecorder
// when a metrics textfile is requested:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	asm := build.NewAssembler(writer, opts).WithRecorder(rec)
//	...
//	err := rec.WriteTextfile(path)
//
// The textfile format is the one read by the node exporter textfile collector,
// so scheduled archive runs can be scraped after they exit.
package metrics
