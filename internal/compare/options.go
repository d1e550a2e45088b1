package compare

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/tagcompare/internal/imaging"
	"github.com/jonathan/tagcompare/internal/output"
	"github.com/jonathan/tagcompare/internal/severity"
)

// DefaultWorkers is the size of the comparison worker pool.
const DefaultWorkers = 8

// Options configures one comparison job.
type Options struct {
	BaseDir   string   `validate:"required"`
	Build     string   `validate:"required_if=Mode reference"`
	Group     string
	Campaigns []string `validate:"dive,required"` // empty means every campaign of the canonical build
	Sizes     []string `validate:"min=1,dive,required"`
	Types     []string `validate:"min=1,dive,required"`
	Configs   []string `validate:"min=1,unique,dive,required"`
	Mode      Mode     `validate:"omitempty,oneof=configs reference"`
	Workers   int      `validate:"gte=0"`
	Opacity   float64  `validate:"omitempty,gt=0,lte=1"` // zero means imaging.DefaultOpacity
	Greyscale bool
	DryRun    bool // compare and classify but write no diagnostics

	Thresholds severity.Thresholds

	// OnUnit, if set, is called from worker goroutines after each unit.
	OnUnit func(UnitResult) `validate:"-"`
}

var validate = validator.New()

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeConfigs
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Opacity == 0 {
		o.Opacity = imaging.DefaultOpacity
	}
	if o.Thresholds == (severity.Thresholds{}) {
		o.Thresholds = severity.DefaultThresholds()
	}
	return o
}

// Validate checks that the options describe a runnable job.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid compare options: %w", err)
	}
	d := o.withDefaults()
	if d.Mode == ModeConfigs && len(d.Configs) < 2 {
		return fmt.Errorf("invalid compare options: comparing configs needs at least 2, got %d", len(d.Configs))
	}
	if d.Mode == ModeReference && d.Build == output.DefaultBuild {
		return fmt.Errorf("invalid compare options: build %q is the reference build", d.Build)
	}
	if err := d.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid compare options: %w", err)
	}
	return nil
}

// pair is one comparison inside a unit. Diagnostics are written under target.
type pair struct {
	nameA, nameB string
	a, b         output.Identity
}

// pairs lists the comparisons of unit u.
func (o Options) pairs(u Unit) (pairs []pair, target output.Identity) {
	canonical := output.New(o.BaseDir, output.Fields{
		Build: output.DefaultBuild, Campaign: u.Campaign, Size: u.Size, Type: u.Type,
	})

	if o.Mode == ModeReference {
		current := canonical.With(output.Fields{Build: o.Build})
		for _, cfg := range o.Configs {
			pairs = append(pairs, pair{
				nameA: cfg,
				nameB: output.DefaultBuild,
				a:     current.With(output.Fields{Config: cfg}),
				b:     canonical.With(output.Fields{Config: cfg}),
			})
		}
		return pairs, current
	}

	for i := 0; i < len(o.Configs); i++ {
		for j := i + 1; j < len(o.Configs); j++ {
			a, b := o.Configs[i], o.Configs[j]
			pairs = append(pairs, pair{
				nameA: a,
				nameB: b,
				a:     canonical.With(output.Fields{Config: a}),
				b:     canonical.With(output.Fields{Config: b}),
			})
		}
	}
	return pairs, canonical
}
