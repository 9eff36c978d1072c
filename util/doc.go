// Package util holds small helpers shared across asrgate packages.
package util
