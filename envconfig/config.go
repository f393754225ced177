// config.go - Haupt-Konfigurationsfunktionen fuer xbarsim
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (XBAR_DEBUG)
// - PlaneEncoding: Standard-Format fuer exportierte Bit-Ebenen (XBAR_PLANE_ENCODING)
// - Var: Liest eine Environment-Variable
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Parallelitaet und Seed
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via XBAR_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("XBAR_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// PlaneEncoding gibt das Standard-Format fuer exportierte Ebenen zurueck
// Konfigurierbar via XBAR_PLANE_ENCODING (f32, f16, bf16)
// Default: f32
func PlaneEncoding() string {
	if s := strings.ToLower(Var("XBAR_PLANE_ENCODING")); s != "" {
		return s
	}
	return "f32"
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
