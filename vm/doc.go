// Package vm implements the sb3vm block execution engine.
//
// This package contains:
//   - Scratch values with loose-typing coercion rules
//   - Variables, lists and the global scope
//   - The static block graph and per-frame block state
//   - The cooperative scheduler (threads, LIFO repeat stacks, broadcasts,
//     custom-block calls with warp)
//   - Opcode handler implementations
package vm
