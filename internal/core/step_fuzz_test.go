//go:build go1.18

package core

import (
	"encoding/json"
	"testing"
)

// FuzzStepDefinitionJSON checks that any definition that decodes survives a
// round trip and normalizes to steps with a name and a role.
func FuzzStepDefinitionJSON(f *testing.F) {
	f.Add([]byte(`"writer"`))
	f.Add([]byte(`{"name":"Edit","role":"editor","prompt":"Fix: {prev}"}`))
	f.Add([]byte(`{"role":"critic"}`))
	f.Add([]byte(`{"name":"x"}`))
	f.Add([]byte(`""`))
	f.Add([]byte(`42`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var def StepDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return
		}

		encoded, err := json.Marshal(def)
		if err != nil {
			t.Fatalf("marshal after successful unmarshal: %v", err)
		}
		var again StepDefinition
		if err := json.Unmarshal(encoded, &again); err != nil {
			t.Fatalf("re-unmarshal %s: %v", encoded, err)
		}
		if again != def {
			t.Fatalf("round trip changed definition: %+v -> %+v", def, again)
		}

		steps, err := NormalizeSteps([]StepDefinition{def}, RoleSet{}, "")
		if err != nil {
			return
		}
		if len(steps) != 1 {
			t.Fatalf("got %d steps, want 1", len(steps))
		}
		if err := steps[0].Validate(); err != nil {
			t.Fatalf("normalized step invalid: %v", err)
		}
	})
}

// FuzzComputeProgress checks the 0..100 bound and monotonicity in current.
func FuzzComputeProgress(f *testing.F) {
	f.Add(0, 3)
	f.Add(1, 3)
	f.Add(3, 3)
	f.Add(5, 3)
	f.Add(-1, 4)
	f.Add(2, 0)

	f.Fuzz(func(t *testing.T, current, total int) {
		p := ComputeProgress(current, total)
		if p < 0 || p > 100 {
			t.Fatalf("ComputeProgress(%d, %d) = %d out of range", current, total, p)
		}
		if total > 0 && current < 1<<30 && ComputeProgress(current+1, total) < p {
			t.Fatalf("ComputeProgress not monotonic at %d/%d", current, total)
		}
	})
}
