// Package build orchestrates sessions: it loads the project manifest,
// assembles build options (including the library-environment digest),
// wires the query engine to the persistent stores, runs the configured
// units under a bounded worker pool, and persists the merged session
// table. Watch mode layers filesystem-triggered incremental sessions on
// top of the same runner.
package build
