// Copyright 2026 The axus Authors
// This file is part of the axus library.
//
// The axus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The axus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the axus library. If not, see <http://www.gnu.org/licenses/>.

package common

import (
	lru "github.com/hashicorp/golang-lru"
)

// CacheType selects the eviction policy of a Cache.
type CacheType int

const (
	LRUCacheType CacheType = iota
	ARCCacheType
)

// Cache is a bounded in-memory cache keyed by string. The block stores
// keep hot payloads behind one of these.
type Cache interface {
	Add(key string, value interface{}) (evicted bool)
	Get(key string) (value interface{}, ok bool)
	Contains(key string) bool
	Remove(key string)
	Purge()
	Len() int
}

// NewCache builds a cache of the given type and size.
func NewCache(typ CacheType, size int) (Cache, error) {
	switch typ {
	case ARCCacheType:
		arc, err := lru.NewARC(size)
		if err != nil {
			return nil, err
		}
		return &arcCache{arc: arc}, nil
	default:
		c, err := lru.New(size)
		if err != nil {
			return nil, err
		}
		return &lruCache{lru: c}, nil
	}
}

type lruCache struct {
	lru *lru.Cache
}

func (c *lruCache) Add(key string, value interface{}) (evicted bool) {
	return c.lru.Add(key, value)
}

func (c *lruCache) Get(key string) (value interface{}, ok bool) {
	return c.lru.Get(key)
}

func (c *lruCache) Contains(key string) bool {
	return c.lru.Contains(key)
}

func (c *lruCache) Remove(key string) {
	c.lru.Remove(key)
}

func (c *lruCache) Purge() {
	c.lru.Purge()
}

func (c *lruCache) Len() int {
	return c.lru.Len()
}

type arcCache struct {
	arc *lru.ARCCache
}

func (c *arcCache) Add(key string, value interface{}) (evicted bool) {
	c.arc.Add(key, value)
	return false
}

func (c *arcCache) Get(key string) (value interface{}, ok bool) {
	return c.arc.Get(key)
}

func (c *arcCache) Contains(key string) bool {
	return c.arc.Contains(key)
}

func (c *arcCache) Remove(key string) {
	c.arc.Remove(key)
}

func (c *arcCache) Purge() {
	c.arc.Purge()
}

func (c *arcCache) Len() int {
	return c.arc.Len()
}
