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
	"context"

	"github.com/ctessum/requestcache"
	"github.com/spatialmodel/snowlayer/internal/hash"
)

// Cache is a Simulator that memoizes the coefficient computations of
// another Simulator. Backscatter requests are passed through.
type Cache struct {
	Simulator
	cache *requestcache.Cache
}

type coefficientRequest struct {
	model  Model
	sensor Sensor
	sp     *Snowpack
}

// coefficientResult carries simulator errors inside the cached value so
// that duplicate requests waiting on a failed request are released.
type coefficientResult struct {
	c   *Coefficients
	err error
}

// NewCache returns a Cache around sim that holds up to maxEntries
// coefficient results in memory. Identical concurrent requests are only
// computed once.
func NewCache(sim Simulator, maxEntries int) *Cache {
	c := &Cache{Simulator: sim}
	c.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		r := request.(coefficientRequest)
		coef, err := sim.Coefficients(ctx, r.model, r.sensor, r.sp)
		return coefficientResult{c: coef, err: err}, nil
	}, 1, requestcache.Deduplicate(), requestcache.Memory(maxEntries))
	return c
}

// Coefficients implements the Simulator interface. The returned value
// is shared with the cache and must not be modified.
func (c *Cache) Coefficients(ctx context.Context, m Model, s Sensor, sp *Snowpack) (*Coefficients, error) {
	req := c.cache.NewRequest(ctx,
		coefficientRequest{model: m, sensor: s, sp: sp},
		hash.Key(m, s, sp),
	)
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	r := result.(coefficientResult)
	return r.c, r.err
}

// Requests returns the number of coefficient requests received by the
// deduplicator, the memory cache and the underlying simulator, in that
// order.
func (c *Cache) Requests() []int { return c.cache.Requests() }
