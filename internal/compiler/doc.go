// Package compiler turns CUE schema definitions into a schema.Registry.
//
// Schemas are authored as CUE so that definitions can be split across
// files, unified, and checked by CUE before they reach the normalizer.
// References between schemas are plain strings resolved after every name
// is declared, which is what lets entity graphs be cyclic.
package compiler
