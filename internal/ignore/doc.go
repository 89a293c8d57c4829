// Package ignore decides which reported messages are dropped before they
// reach the store. Rules come in three kinds: plain substring, regular
// expression and CEL expressions over the structured message fields.
package ignore
