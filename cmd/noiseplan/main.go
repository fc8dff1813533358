// Command noiseplan simulates the degree growth of homomorphic operation
// schedules and renders the trajectories as HTML charts. It answers the
// planning question "how many operations fit between bootstraps" for a
// given block geometry without touching any ciphertext.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/luxfi/fheint"
)

// step is one homomorphic operation in a schedule.
type step struct {
	Op     string `json:"op"`
	Scalar uint64 `json:"scalar,omitempty"`
}

// schedule is a named sequence of operations applied to one block.
type schedule struct {
	Name  string `json:"name"`
	Steps []step `json:"steps"`
}

// trace is the simulated degree trajectory of a schedule.
type trace struct {
	Name       string   `json:"name"`
	Degrees    []uint64 `json:"degrees"`
	Bootstraps int      `json:"bootstraps"`
	Overflows  int      `json:"overflows"`
}

// defaultSchedules covers the shapes the engine runs in practice: linear
// chains of scalar adds, scalar multiply fan-out, and select-heavy mixes
// where every selection costs a bootstrap.
func defaultSchedules() []schedule {
	return []schedule{
		{
			Name: "scalar-add chain",
			Steps: []step{
				{Op: "scalar_add", Scalar: 1}, {Op: "scalar_add", Scalar: 2},
				{Op: "scalar_add", Scalar: 3}, {Op: "scalar_add", Scalar: 3},
				{Op: "scalar_add", Scalar: 2}, {Op: "scalar_add", Scalar: 1},
				{Op: "scalar_add", Scalar: 3}, {Op: "scalar_add", Scalar: 2},
			},
		},
		{
			Name: "add tree",
			Steps: []step{
				{Op: "add"}, {Op: "add"}, {Op: "add"}, {Op: "add"},
				{Op: "add"}, {Op: "add"}, {Op: "add"},
			},
		},
		{
			Name: "scalar-mul then select",
			Steps: []step{
				{Op: "scalar_mul", Scalar: 2}, {Op: "scalar_add", Scalar: 1},
				{Op: "select"}, {Op: "scalar_mul", Scalar: 3},
				{Op: "scalar_add", Scalar: 2}, {Op: "select"},
			},
		},
		{
			Name: "select heavy",
			Steps: []step{
				{Op: "select"}, {Op: "scalar_add", Scalar: 1}, {Op: "select"},
				{Op: "add"}, {Op: "select"}, {Op: "add"}, {Op: "select"},
			},
		},
	}
}

// simulate walks a schedule applying the engine's degree bookkeeping: adds
// sum degrees, scalar multiplies scale them, and a select (or an overflow)
// bootstraps the block back to a clean message. The second operand of an
// add is assumed freshly encrypted (degree message_modulus - 1).
func simulate(params fheint.Parameters, sched schedule) trace {
	total := params.TotalModulus()
	msgMod := params.MessageModulus
	fresh := msgMod - 1

	degree := fresh
	tr := trace{Name: sched.Name, Degrees: []uint64{degree}}

	for _, st := range sched.Steps {
		var next uint64
		switch st.Op {
		case "scalar_add":
			next = degree + st.Scalar%msgMod
		case "add":
			next = degree + fresh
		case "scalar_mul":
			next = degree * st.Scalar
		case "select":
			// Selection bootstraps its operands; the output carries a
			// clean message regardless of the input degree.
			tr.Bootstraps++
			next = fresh
		default:
			log.Fatalf("unknown op %q in schedule %q", st.Op, sched.Name)
		}

		if next >= total {
			// The engine refuses this: the caller has to propagate (one
			// bootstrap per block) before retrying.
			tr.Overflows++
			tr.Bootstraps++
			degree = fresh
			switch st.Op {
			case "scalar_add":
				degree += st.Scalar % msgMod
			case "add":
				degree += fresh
			case "scalar_mul":
				degree *= st.Scalar
			}
		} else {
			degree = next
		}
		tr.Degrees = append(tr.Degrees, degree)
	}

	return tr
}

func toLineItems(vals []uint64) []opts.LineData {
	out := make([]opts.LineData, len(vals))
	for i, v := range vals {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

func newTraceChart(params fheint.Parameters, traces []trace) *charts.Line {
	maxSteps := 0
	for _, tr := range traces {
		if len(tr.Degrees) > maxSteps {
			maxSteps = len(tr.Degrees)
		}
	}
	xLabels := make([]string, maxSteps)
	for i := range xLabels {
		xLabels[i] = fmt.Sprintf("%d", i)
	}

	total := params.TotalModulus()
	budget := make([]uint64, maxSteps)
	for i := range budget {
		budget[i] = total - 1
	}

	line := charts.NewLine()
	subtitle := fmt.Sprintf("message_modulus=%d carry_modulus=%d budget=%d",
		params.MessageModulus, params.CarryModulus, total-1)
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Degree trajectories", Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "noiseplan", Width: "1200px", Height: "600px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xLabels)
	for _, tr := range traces {
		line.AddSeries(tr.Name, toLineItems(tr.Degrees))
	}
	line.AddSeries("budget", toLineItems(budget)).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))
	return line
}

func newBootstrapChart(traces []trace) *charts.Bar {
	names := make([]string, len(traces))
	boots := make([]opts.BarData, len(traces))
	overs := make([]opts.BarData, len(traces))
	for i, tr := range traces {
		names[i] = tr.Name
		boots[i] = opts.BarData{Value: tr.Bootstraps}
		overs[i] = opts.BarData{Value: tr.Overflows}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Bootstrap cost per schedule"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("bootstraps", boots).
		AddSeries("forced propagations", overs)
	return bar
}

func saveJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func main() {
	messageBits := flag.Int("message-bits", 2, "message bits per block (1, 2 or 3)")
	schedFile := flag.String("schedules", "", "JSON file with custom schedules (optional)")
	outDir := flag.String("out", "noiseplan-reports", "output directory")
	flag.Parse()

	var params fheint.Parameters
	switch *messageBits {
	case 1:
		params = fheint.ParamMessage1Carry1
	case 2:
		params = fheint.ParamMessage2Carry2
	case 3:
		params = fheint.ParamMessage3Carry3
	default:
		log.Fatalf("unsupported message-bits: %d", *messageBits)
	}

	schedules := defaultSchedules()
	if *schedFile != "" {
		data, err := os.ReadFile(*schedFile)
		if err != nil {
			log.Fatalf("read schedules: %v", err)
		}
		schedules = nil
		if err := json.Unmarshal(data, &schedules); err != nil {
			log.Fatalf("parse schedules: %v", err)
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("mkdir: %v", err)
	}

	traces := make([]trace, len(schedules))
	for i, sched := range schedules {
		traces[i] = simulate(params, sched)
		log.Printf("[noiseplan] %s: %d steps, %d bootstraps, %d forced propagations",
			sched.Name, len(sched.Steps), traces[i].Bootstraps, traces[i].Overflows)
	}

	ts := time.Now().Format("20060102_150405")

	jsonPath := filepath.Join(*outDir, fmt.Sprintf("noiseplan_%s.json", ts))
	if err := saveJSON(jsonPath, traces); err != nil {
		log.Printf("warn: save traces: %v", err)
	}

	page := components.NewPage()
	page.AddCharts(newTraceChart(params, traces))
	page.AddCharts(newBootstrapChart(traces))

	htmlPath := filepath.Join(*outDir, fmt.Sprintf("noiseplan_%s.html", ts))
	f, err := os.Create(htmlPath)
	if err != nil {
		log.Fatalf("create html: %v", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("render html: %v", err)
	}

	fmt.Println("Report page:", htmlPath)
	fmt.Println("Traces JSON:", jsonPath)
}
