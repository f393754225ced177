// config_features.go - Parallelitaet und Reproduzierbarkeit
//
// Dieses Modul enthaelt:
// - Anzahl parallel berechneter Partitionen
// - Seed fuer zufaellige Gewichte und Eingaben der CLI
package envconfig

// =============================================================================
// Parallelitaets-Einstellungen
// =============================================================================

var (
	// NumParallel setzt die Anzahl parallel berechneter Crossbar-Partitionen
	// Konfigurierbar via XBAR_NUM_PARALLEL
	NumParallel = Uint("XBAR_NUM_PARALLEL", 1)
)

// =============================================================================
// Reproduzierbarkeit
// =============================================================================

var (
	// Seed setzt den Standard-Seed der CLI
	// Konfigurierbar via XBAR_SEED
	Seed = Uint64("XBAR_SEED", 0)

	// NoProgress unterdrueckt Fortschrittsausgaben der Kalibrierung
	NoProgress = Bool("XBAR_NOPROGRESS")
)
