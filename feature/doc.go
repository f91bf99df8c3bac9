// Package feature implements per-cell, per-frame feature extraction: a
// static name -> extractor registry, builtin phase and fluorescence
// features, trace-level filters, and CSV serialization.
package feature
