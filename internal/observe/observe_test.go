package observe

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kprusa/leachsim/internal/proto"
)

func TestCSV_ScalarAndSeries(t *testing.T) {
	var scalars, series bytes.Buffer
	sink := NewCSV(&scalars, &series)

	sink.Scalar("rounds", 12)
	sink.Series(proto.NodeID(3), "energy", 1.5, 0.91)

	wantScalars := "name,value\nrounds,12\n"
	if got := scalars.String(); got != wantScalars {
		t.Errorf("scalars = %q, want %q", got, wantScalars)
	}

	gotSeries := series.String()
	if !strings.HasPrefix(gotSeries, "node,key,time,value\n") {
		t.Errorf("series header missing, got %q", gotSeries)
	}
	if !strings.Contains(gotSeries, "3,energy,1.5,0.91") {
		t.Errorf("series row missing expected fields, got %q", gotSeries)
	}
}

func TestNull_DiscardsEverything(t *testing.T) {
	var n Null
	n.Scalar("rounds", 1)
	n.Series(proto.NodeID(0), "energy", 0, 1)
}
