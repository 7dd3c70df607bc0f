// internal/discovery/demo/words.go
package demo

var words = []string{
	"adapter", "amber", "anchor", "arrow", "atlas", "badge", "beacon", "binary",
	"border", "bridge", "cable", "canyon", "carbon", "cedar", "channel", "circuit",
	"cloud", "cobalt", "comet", "copper", "coral", "crystal", "delta", "desert",
	"dial", "echo", "ember", "engine", "falcon", "field", "flint", "forest",
	"frame", "garnet", "gate", "glacier", "granite", "harbor", "hollow", "horizon",
	"island", "ivory", "jasper", "jungle", "kernel", "lantern", "laser", "ledger",
	"linen", "lunar", "magnet", "maple", "marble", "meadow", "meter", "modem",
	"motor", "nickel", "north", "oasis", "onyx", "orbit", "panel", "pebble",
	"pilot", "pixel", "plasma", "prism", "pulse", "quartz", "radar", "raven",
	"relay", "ridge", "river", "rocket", "saddle", "scanner", "sensor", "signal",
	"silver", "socket", "solar", "spark", "spring", "static", "summit", "switch",
	"timber", "token", "tower", "trail", "tunnel", "valley", "vector", "velvet",
	"voltage", "willow", "winter", "zenith",
}
