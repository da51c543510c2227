// Package serialization saves and restores network parameters in the
// SafeTensors format.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON, tensor name -> {dtype, shape, data_offsets}]
//	  [Tensor data: raw little-endian float32]
//
// Every connection contributes two tensors, "conn<id>.weight" with shape
// [dst, src] and "conn<id>.bias" with shape [dst]. The "__metadata__" entry
// records the layer widths and a SHA-256 checksum of the data section.
//
// Example usage:
//
//	if err := serialization.SaveNetwork("mnist.safetensors", net); err != nil {
//	    log.Fatal(err)
//	}
//
//	// later, on a network with the same widths
//	if err := serialization.LoadNetwork("mnist.safetensors", net); err != nil {
//	    log.Fatal(err)
//	}
package serialization
