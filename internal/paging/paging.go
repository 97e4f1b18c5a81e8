// Package paging provides sliding-window index arithmetic over ordered
// lists, independent of content. Comment pages are zero-based; reply pages
// are one-based and only meaningful while a comment is expanded.
package paging

// DisplayInfo describes the currently visible window of a list. CurrentPage
// is 1-based for presentation; StartIndex/EndIndex are a half-open range.
type DisplayInfo struct {
	Total          int  `json:"total"`
	DisplayedCount int  `json:"displayed_count"`
	CurrentPage    int  `json:"current_page"`
	HasMore        bool `json:"has_more"`
	HasPrevious    bool `json:"has_previous"`
	StartIndex     int  `json:"start_index"`
	EndIndex       int  `json:"end_index"`
}

// Window returns the contiguous slice [pageIndex*pageSize, +pageSize) clipped
// to the list. Out-of-range page indexes yield an empty slice, never a panic.
func Window[T any](list []T, pageIndex, pageSize int) []T {
	if pageIndex < 0 || pageSize < 1 {
		return nil
	}
	start := pageIndex * pageSize
	if start >= len(list) {
		return nil
	}
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

// Describe computes the window bookkeeping for a list of the given length.
func Describe(total, pageIndex, pageSize int) DisplayInfo {
	if total < 0 {
		total = 0
	}
	info := DisplayInfo{Total: total, CurrentPage: 1}
	if pageIndex < 0 || pageSize < 1 {
		return info
	}
	start := pageIndex * pageSize
	if start > total {
		start = total
	}
	end := pageIndex*pageSize + pageSize
	if end > total {
		end = total
	}
	if end < start {
		end = start
	}
	info.CurrentPage = pageIndex + 1
	info.StartIndex = start
	info.EndIndex = end
	info.DisplayedCount = end - start
	info.HasMore = end < total
	info.HasPrevious = pageIndex > 0 && total > 0
	return info
}

// ClampAfterMutation re-validates a page index after the underlying list
// shrank. If the window's start now points past the end, the largest valid
// page index is returned; otherwise the input is unchanged. Must run after
// every delete so the view never lands on a page past the end.
func ClampAfterMutation(pageIndex, newTotal, pageSize int) int {
	if pageIndex < 0 {
		return 0
	}
	if pageSize < 1 {
		return pageIndex
	}
	if newTotal <= 0 {
		return 0
	}
	if pageIndex*pageSize < newTotal {
		return pageIndex
	}
	return (newTotal - 1) / pageSize
}

// ReplyState is the per-comment disclosure state: collapsed comments show a
// fixed preview window, expanded ones page through the full reply list.
type ReplyState struct {
	Expanded bool `json:"expanded"`
	// Page is the 1-based reply page while expanded.
	Page int `json:"page"`
}

// NewReplyState returns the collapsed default pointing at the first page.
func NewReplyState() ReplyState {
	return ReplyState{Page: 1}
}

// ReplyWindow returns the visible replies for one comment. Collapsed mode is
// a fixed preview of the first collapsedCount entries with no paging;
// expanded mode windows the full list at expandedPageSize per page.
func ReplyWindow[T any](list []T, st ReplyState, collapsedCount, expandedPageSize int) []T {
	if !st.Expanded {
		if collapsedCount < 1 {
			return nil
		}
		if len(list) <= collapsedCount {
			return list
		}
		return list[:collapsedCount]
	}
	return Window(list, st.Page-1, expandedPageSize)
}

// ReplyInfo computes the window bookkeeping for one comment's replies.
func ReplyInfo(total int, st ReplyState, collapsedCount, expandedPageSize int) DisplayInfo {
	if !st.Expanded {
		info := Describe(total, 0, collapsedCount)
		// A collapsed preview has no pages to walk back through.
		info.HasPrevious = false
		return info
	}
	return Describe(total, st.Page-1, expandedPageSize)
}

// ClampReplyPage re-validates an expanded reply page after the list shrank,
// mirroring ClampAfterMutation in 1-based terms.
func ClampReplyPage(st ReplyState, total, expandedPageSize int) ReplyState {
	if !st.Expanded {
		return st
	}
	if st.Page < 1 {
		st.Page = 1
		return st
	}
	st.Page = ClampAfterMutation(st.Page-1, total, expandedPageSize) + 1
	return st
}
