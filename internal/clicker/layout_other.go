//go:build !unix

package clicker

const timevalSize = 16
