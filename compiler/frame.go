package compiler

import "strconv"

// ---------------------------------------------------------------------------
// Frame layout: offsets and access links
// ---------------------------------------------------------------------------
//
// An activation record, from higher to lower addresses:
//
//	control link          the caller's $fp, restored on return
//	param n ... param 1   pushed by the caller, last param first
//	access link           <- $fp
//	return address        $fp-1
//	local 1 ... local k   $fp-2 downward
//
// Objects are laid out in the heap as
// field n ... field 1 followed by the dispatch pointer; the object pointer
// addresses the dispatch pointer, so field i lives at offset -i.

const (
	// FirstLocalOffset is the offset of the first local declaration.
	FirstLocalOffset = -2
	// FirstParamOffset is the offset of the first parameter.
	FirstParamOffset = 1
	// FirstFieldOffset is the offset of the first field of a root class.
	FirstFieldOffset = -1
	// FirstMethodOffset is the dispatch table slot of the first method of a
	// root class.
	FirstMethodOffset = 0

	// NullPointer is the value of the null reference.
	NullPointer = -1

	// GlobalFrameCell is the heap cell holding the global frame pointer in
	// programs that declare classes.
	GlobalFrameCell = 0
)

// accessHops is the number of access links followed from a use at nesting
// level useLevel to reach the frame declaring a name at declLevel.
func accessHops(useLevel, declLevel int) int {
	return useLevel - declLevel
}

// fieldOffset returns the object offset of the field at position i of the
// class type's field list.
func fieldOffset(i int) int {
	return FirstFieldOffset - i
}

// fieldIndex is the inverse of fieldOffset.
func fieldIndex(offset int) int {
	return FirstFieldOffset - offset
}

// methodOffset returns the dispatch table slot of the method at position i
// of the class type's method list.
func methodOffset(i int) int {
	return FirstMethodOffset + i
}

// methodIndex is the inverse of methodOffset.
func methodIndex(offset int) int {
	return offset - FirstMethodOffset
}

// followAccessLinks emits the code that leaves on the stack the address of
// the frame reached after hops access links from the current frame.
func followAccessLinks(hops int) []string {
	code := []string{"lfp"}
	for i := 0; i < hops; i++ {
		code = append(code, "lw")
	}
	return code
}

// loadSlot emits the code that loads the slot at offset from the frame
// reached after hops access links.
func loadSlot(hops, offset int) []string {
	return append(followAccessLinks(hops),
		"push "+strconv.Itoa(offset),
		"add",
		"lw",
	)
}

// saveGlobalFrame emits the code that stores the global frame pointer in
// heap cell GlobalFrameCell and reserves that cell. It must run before any
// other heap allocation.
func saveGlobalFrame() []string {
	return []string{
		"lfp", "lhp", "sw",
		"lhp", "push 1", "add", "shp",
	}
}

// loadGlobal emits the code that loads the slot at offset from the global
// frame, whose pointer is kept in GlobalFrameCell.
func loadGlobal(offset int) []string {
	return []string{
		"push " + strconv.Itoa(GlobalFrameCell), "lw",
		"push " + strconv.Itoa(offset), "add",
		"lw",
	}
}
