// Copyright 2026 The USM Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package usm

import (
	"fmt"
	"log"
	"sort"
)

// ProcessTree maps each pid seen in a scan to the set of its children.
// Every scanned pid has an entry, possibly empty.  A tree is only valid
// for the discovery call that built it.
type ProcessTree struct {
	children map[int]map[int]struct{}
	parents  map[int]int
	scanned  map[int]struct{}
}

// BuildTree takes a fresh snapshot of the table.  Pids whose parent
// cannot be determined (usually because they exited mid-scan) are left
// out of their parent's child set, with a warning.
func BuildTree(t ProcessTable, logger *log.Logger) (*ProcessTree, error) {
	pids, err := t.Pids()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProcessQuery, err)
	}
	tree := &ProcessTree{
		children: make(map[int]map[int]struct{}, len(pids)),
		parents:  make(map[int]int, len(pids)),
		scanned:  make(map[int]struct{}, len(pids)),
	}
	for _, pid := range pids {
		tree.scanned[pid] = struct{}{}
		if _, ok := tree.children[pid]; !ok {
			tree.children[pid] = map[int]struct{}{}
		}
		ppid, err := t.Parent(pid)
		if err != nil {
			if logger != nil {
				logger.Printf("Cannot determine parent of pid %d: %v",
					pid, err)
			}
			continue
		}
		tree.parents[pid] = ppid
		set, ok := tree.children[ppid]
		if !ok {
			set = map[int]struct{}{}
			tree.children[ppid] = set
		}
		set[pid] = struct{}{}
	}
	return tree, nil
}

// NewProcessTree builds a tree from an explicit parent map, pid -> ppid.
func NewProcessTree(parents map[int]int) *ProcessTree {
	tree := &ProcessTree{
		children: make(map[int]map[int]struct{}),
		parents:  make(map[int]int),
		scanned:  make(map[int]struct{}),
	}
	for pid, ppid := range parents {
		tree.scanned[pid] = struct{}{}
		if _, ok := tree.children[pid]; !ok {
			tree.children[pid] = map[int]struct{}{}
		}
		if _, ok := tree.children[ppid]; !ok {
			tree.children[ppid] = map[int]struct{}{}
		}
		tree.children[ppid][pid] = struct{}{}
		tree.parents[pid] = ppid
	}
	return tree
}

// Has reports whether pid was present in the scan.  A pid only named
// as the parent of a scanned one does not count.
func (t *ProcessTree) Has(pid int) bool {
	_, ok := t.scanned[pid]
	return ok
}

// Children returns the children of pid in ascending order.
func (t *ProcessTree) Children(pid int) []int {
	set := t.children[pid]
	rv := make([]int, 0, len(set))
	for c := range set {
		rv = append(rv, c)
	}
	sort.Ints(rv)
	return rv
}

// Parent returns the parent of pid, if it was determined.
func (t *ProcessTree) Parent(pid int) (int, bool) {
	ppid, ok := t.parents[pid]
	return ppid, ok
}

// Ancestors returns the chain from pid up to, but excluding, stop.  The
// chain starts at pid itself.  If pid is not in the tree the chain is
// empty; if stop is never reached, the chain ends at the highest
// ancestor whose parent is known.
func (t *ProcessTree) Ancestors(pid, stop int) []int {
	var chain []int
	if !t.Has(pid) {
		return chain
	}
	seen := map[int]bool{}
	for cur := pid; cur != stop && cur > 1 && !seen[cur]; {
		seen[cur] = true
		chain = append(chain, cur)
		ppid, ok := t.parents[cur]
		if !ok {
			break
		}
		cur = ppid
	}
	return chain
}

// IsDescendant reports whether pid lies below root.
func (t *ProcessTree) IsDescendant(pid, root int) bool {
	seen := map[int]bool{}
	for cur := pid; !seen[cur]; {
		seen[cur] = true
		ppid, ok := t.parents[cur]
		if !ok {
			return false
		}
		if ppid == root {
			return true
		}
		cur = ppid
	}
	return false
}
