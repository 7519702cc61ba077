package resolve

// DefaultSystemPackages is the hard-coded set of packages shipped with
// the runtime itself (spec.md §4.3 step 5: "a hard-coded set shipped
// with the runtime, e.g. base, utils, stats"). These resolve to a
// synthetic entry with no dependencies and are never installed.
var DefaultSystemPackages = map[string]bool{
	"R":         true,
	"base":      true,
	"compiler":  true,
	"datasets":  true,
	"grDevices": true,
	"graphics":  true,
	"grid":      true,
	"methods":   true,
	"parallel":  true,
	"splines":   true,
	"stats":     true,
	"stats4":    true,
	"tcltk":     true,
	"tools":     true,
	"utils":     true,
}
