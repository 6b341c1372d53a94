// Package compiler provides the word scanner, record pairer, parser and code
// generator for stackbad programs.
//
// A program is a sequence of words spelled only with the letters of "stack"
// and "bad". Each word's letter counts encode small integers; a Stack word
// and the Bad word after it form one 8-field Record, the parser's
// instruction unit.
//
// Pipeline: source → Scanner → Pairer → Parser → Generate → Backend object
package compiler
