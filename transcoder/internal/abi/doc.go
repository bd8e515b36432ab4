// Package abi holds the low-level arithmetic shared by the encoder and the
// layout calculator: alignment, overflow-checked sizes, allocation limits and
// the dangling pointer used for zero-sized buffers.
//
// This package is internal to the transcoder.
package abi
