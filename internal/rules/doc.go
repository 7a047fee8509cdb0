// Package rules holds the pure decision logic behind task generation:
// framework tagging, priority and scheduling, the necessity decision,
// title synthesis and category mapping.
package rules
