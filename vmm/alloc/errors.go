package alloc

import "github.com/vmkit/vmkit/pkg/types"

var (
	// ErrNullRequest indicates a zero-size allocation request.
	ErrNullRequest = &types.Error{Kind: types.ErrKindNullRequest, Msg: "alloc: zero-size allocation request"}

	// ErrOverflow indicates that no placement or id satisfies the request
	// within the managed bound.
	ErrOverflow = &types.Error{Kind: types.ErrKindOverflow, Msg: "alloc: request overflows the managed bound"}

	// ErrOverlap indicates the requested range intersects a live allocation.
	ErrOverlap = &types.Error{Kind: types.ErrKindOverlap, Msg: "alloc: range overlaps an existing allocation"}

	// ErrUnalignedAddress indicates an exact-placement request that violates
	// the pool's alignment.
	ErrUnalignedAddress = &types.Error{Kind: types.ErrKindUnalignedAddress, Msg: "alloc: requested address is unaligned"}

	// ErrDuplicated indicates an exact id request for a value already in use.
	ErrDuplicated = &types.Error{Kind: types.ErrKindDuplicated, Msg: "alloc: id is already allocated"}

	// ErrInvalid indicates a malformed pool bound or a request outside it.
	ErrInvalid = &types.Error{Kind: types.ErrKindInvalid, Msg: "alloc: invalid request"}

	// ErrExist indicates a pool name that is already registered.
	ErrExist = &types.Error{Kind: types.ErrKindExist, Msg: "alloc: pool name is already registered"}
)
