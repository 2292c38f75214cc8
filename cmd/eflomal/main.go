// Command eflomal aligns a parallel corpus with a collapsed Gibbs sampler
// over IBM-style models 1 through 3.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"flag"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/robertostling/eflomal"
)

// randomSeed sources a fresh uint64 of real entropy, the way
// random_system_state reads /dev/urandom; it falls back to the wall clock
// if the system entropy source is unavailable. Called once per direction,
// independently, so a forward and a reverse run never share a stream.
func randomSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err == nil {
		return binary.LittleEndian.Uint64(buf[:])
	}
	return uint64(time.Now().UnixNano())
}

func main() {
	srcPath := flag.String("s", "", "source text file (required)")
	tgtPath := flag.String("t", "", "target text file (required)")
	priorsPath := flag.String("p", "", "priors file")
	fwdLinks := flag.String("f", "", "forward (source-to-target) links output file")
	revLinks := flag.String("r", "", "reverse (target-to-source) links output file")
	statsPath := flag.String("S", "", "jump statistics output file")
	fwdScores := flag.String("F", "", "forward scores output file")
	revScores := flag.String("R", "", "reverse scores output file")
	n1 := flag.Int("1", 1, "number of model 1 iterations")
	n2 := flag.Int("2", 1, "number of model 2 iterations")
	n3 := flag.Int("3", 1, "number of model 3 iterations")
	nSamplers := flag.Int("n", 1, "number of independent samplers")
	nullPrior := flag.Float64("N", 0.2, "prior probability of a NULL link")
	scoreModel := flag.Int("M", 0, "model to use for scoring with -F/-R (0 and 1 both score with model 1)")
	model := flag.Int("m", 0, "highest model to train, 1/2/3 (required)")
	quiet := flag.Bool("q", false, "suppress progress logging")
	flag.Parse()

	if *srcPath == "" || *tgtPath == "" {
		glog.Fatal("both -s and -t are required")
	}
	if *model < 1 || *model > 3 {
		glog.Fatal("-m is required and must be 1, 2 or 3")
	}

	source, err := eflomal.ReadText(*srcPath)
	if err != nil {
		glog.Fatal(err)
	}
	target, err := eflomal.ReadText(*tgtPath)
	if err != nil {
		glog.Fatal(err)
	}

	var fwdPriors, revPriors *eflomal.Priors
	if *priorsPath != "" {
		fwdPriors, err = eflomal.LoadPriors(*priorsPath, source, target, false)
		if err != nil {
			glog.Fatal(err)
		}
		if *revLinks != "" || *revScores != "" {
			revPriors, err = eflomal.LoadPriors(*priorsPath, target, source, true)
			if err != nil {
				glog.Fatal(err)
			}
		}
	}

	cfg := eflomal.DriverConfig{
		NSamplers: *nSamplers,
		NullPrior: eflomal.Count(*nullPrior),
		Model:     eflomal.Model(*model),
		NIters:    [3]int{*n1, *n2, *n3},
		Quiet:     *quiet,
	}

	var wg sync.WaitGroup
	var fwdDriver, revDriver *eflomal.Driver

	if *fwdLinks != "" || *fwdScores != "" {
		fwdCfg := cfg
		fwdCfg.Priors = fwdPriors
		fwdDriver, err = eflomal.NewDriver(source, target, fwdCfg)
		if err != nil {
			glog.Fatal(err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fwdDriver.Run(context.Background(), randomSeed()); err != nil {
				glog.Fatal(err)
			}
		}()
	}

	if *revLinks != "" || *revScores != "" {
		revCfg := cfg
		revCfg.Priors = revPriors
		revDriver, err = eflomal.NewDriver(target, source, revCfg)
		if err != nil {
			glog.Fatal(err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := revDriver.Run(context.Background(), randomSeed()); err != nil {
				glog.Fatal(err)
			}
		}()
	}

	wg.Wait()

	if fwdDriver != nil {
		if *fwdLinks != "" {
			if err := eflomal.WriteMoses(*fwdLinks, fwdDriver.Result(), false); err != nil {
				glog.Fatal(err)
			}
		}
		if *statsPath != "" {
			if err := eflomal.WriteStats(*statsPath, fwdDriver.Result()); err != nil {
				glog.Fatal(err)
			}
		}
		if *fwdScores != "" {
			scores := fwdDriver.ScoreCorpus(eflomal.Model(*scoreModel))
			if err := eflomal.WriteScores(*fwdScores, scores); err != nil {
				glog.Fatal(err)
			}
		}
	}

	if revDriver != nil {
		if *revLinks != "" {
			if err := eflomal.WriteMoses(*revLinks, revDriver.Result(), true); err != nil {
				glog.Fatal(err)
			}
		}
		if *revScores != "" {
			scores := revDriver.ScoreCorpus(eflomal.Model(*scoreModel))
			if err := eflomal.WriteScores(*revScores, scores); err != nil {
				glog.Fatal(err)
			}
		}
	}
}
