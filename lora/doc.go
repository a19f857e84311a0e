// Package lora implements Low-Rank Adaptation as a weight parametrization.
//
// A Parametrization bound to a weight W of shape (m, n) holds two factors,
// B (m×rank, zero-initialized) and A (rank×n, drawn from N(0, 1)), and a
// scale alpha/rank. While enabled the layer sees
//
//	W_eff = W + scale · reshape(B·A, shape(W))
//
// and while disabled it sees W itself. W is never written: training moves
// only A and B, and the factors survive any number of enable/disable flips.
// Because B starts at zero, binding a fresh parametrization leaves the
// model's outputs unchanged.
package lora
