/*
Copyright © 2024 the SnowLayer authors.
This file is part of SnowLayer.

SnowLayer is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SnowLayer is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SnowLayer.  If not, see <http://www.gnu.org/licenses/>.
*/

package emsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// Operations understood by a driver process.
const (
	opBackscatter  = "backscatter"
	opCoefficients = "coefficients"
)

// Request is the message written to the standard input of a driver
// process.
type Request struct {
	Operation string
	Model     Model
	Sensor    Sensor
	Snowpacks []*Snowpack

	// Parallel asks the driver to use its parallel computation mode.
	Parallel bool
}

// Response is the message a driver process writes to its standard output.
// NaN values are written as null.
type Response struct {
	SigmaVV    []*float64 `json:",omitempty"`
	Scattering []float64  `json:",omitempty"`
	Absorption []float64  `json:",omitempty"`

	// Error holds a message if the driver failed.
	Error string `json:",omitempty"`
}

// Process is a Simulator that runs an external driver program for
// each request. The driver reads a single JSON-encoded Request from
// standard input and writes a single JSON-encoded Response to standard
// output.
type Process struct {
	// Command is the driver executable.
	Command string

	// Args are additional arguments for Command.
	Args []string

	// Log receives diagnostic messages. If nil,
	// logrus.StandardLogger() is used.
	Log logrus.FieldLogger
}

func (p *Process) log() logrus.FieldLogger {
	if p.Log == nil {
		return logrus.StandardLogger()
	}
	return p.Log
}

// Backscatter implements the Simulator interface.
func (p *Process) Backscatter(ctx context.Context, m Model, s Sensor, snowpacks []*Snowpack) ([]float64, error) {
	if len(snowpacks) == 0 {
		return nil, nil
	}
	resp, err := p.call(ctx, &Request{
		Operation: opBackscatter,
		Model:     m,
		Sensor:    s,
		Snowpacks: snowpacks,
		Parallel:  true,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.SigmaVV) != len(snowpacks) {
		return nil, fmt.Errorf("emsim: driver returned %d backscatter values for %d snowpacks", len(resp.SigmaVV), len(snowpacks))
	}
	o := make([]float64, len(resp.SigmaVV))
	for i, v := range resp.SigmaVV {
		if v == nil {
			o[i] = math.NaN()
		} else {
			o[i] = *v
		}
	}
	return o, nil
}

// Coefficients implements the Simulator interface.
func (p *Process) Coefficients(ctx context.Context, m Model, s Sensor, sp *Snowpack) (*Coefficients, error) {
	resp, err := p.call(ctx, &Request{
		Operation: opCoefficients,
		Model:     m,
		Sensor:    s,
		Snowpacks: []*Snowpack{sp},
	})
	if err != nil {
		return nil, err
	}
	n := len(sp.Layers)
	if len(resp.Scattering) != n || len(resp.Absorption) != n {
		return nil, fmt.Errorf("emsim: driver returned %d scattering and %d absorption coefficients for %d layers",
			len(resp.Scattering), len(resp.Absorption), n)
	}
	return &Coefficients{Scattering: resp.Scattering, Absorption: resp.Absorption}, nil
}

// call runs the driver with request r and decodes its response.
func (p *Process) call(ctx context.Context, r *Request) (*Response, error) {
	in, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("emsim: encoding %s request: %v", r.Operation, err)
	}
	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(in)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	log := p.log().WithFields(logrus.Fields{
		"operation": r.Operation,
		"model":     r.Model.Name,
		"snowpacks": len(r.Snowpacks),
		"duration":  time.Since(start),
	})
	if err != nil {
		log.WithField("stderr", stderr.String()).Error("simulator driver failed")
		return nil, fmt.Errorf("emsim: running %s: %v", p.Command, err)
	}
	log.Debug("simulator driver finished")

	resp := new(Response)
	if err := json.Unmarshal(stdout.Bytes(), resp); err != nil {
		return nil, fmt.Errorf("emsim: decoding %s response: %v", r.Operation, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("emsim: driver: %s", resp.Error)
	}
	return resp, nil
}

// Serve handles a single Request read from r using sim and writes the
// Response to w. It is the driver side of Process, for driver programs
// written in Go. Simulator failures are reported in Response.Error; the
// returned error is only set if the request or response cannot be
// transferred.
func Serve(ctx context.Context, sim Simulator, r io.Reader, w io.Writer) error {
	req := new(Request)
	if err := json.NewDecoder(r).Decode(req); err != nil {
		return fmt.Errorf("emsim: decoding request: %v", err)
	}
	resp := new(Response)
	switch req.Operation {
	case opBackscatter:
		sigma, err := sim.Backscatter(ctx, req.Model, req.Sensor, req.Snowpacks)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.SigmaVV = make([]*float64, len(sigma))
		for i := range sigma {
			if !math.IsNaN(sigma[i]) {
				resp.SigmaVV[i] = &sigma[i]
			}
		}
	case opCoefficients:
		if len(req.Snowpacks) != 1 {
			resp.Error = fmt.Sprintf("coefficients request has %d snowpacks", len(req.Snowpacks))
			break
		}
		c, err := sim.Coefficients(ctx, req.Model, req.Sensor, req.Snowpacks[0])
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Scattering, resp.Absorption = c.Scattering, c.Absorption
	default:
		resp.Error = fmt.Sprintf("invalid operation '%s'", req.Operation)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		return fmt.Errorf("emsim: encoding response: %v", err)
	}
	return nil
}
