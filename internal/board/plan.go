// Package board holds the position arithmetic for the task board.
// Positions are dense 1-based integers, unique among the active tasks
// of a group. Every plan produced here keeps both the source and the
// destination group dense when applied atomically.
package board

// Shift is one ranged position update inside a single group:
// add Delta to every active task with From <= position <= To.
// To == 0 means the range is open-ended.
type Shift struct {
	GroupID int64
	From    int
	To      int
	Delta   int
}

// Plan is the complete set of writes one move requires.
type Plan struct {
	NoOp     bool
	GroupID  int64 // destination group of the moved task
	Position int   // final position of the moved task
	Shifts   []Shift
}

// PlanMove derives the shifts for moving the task currently at
// (srcGroup, srcPos) into destGroup at target. target == 0 means
// append to the end of the destination. srcSize and destSize count
// active tasks per group; srcSize includes the moved task itself.
//
// All branches follow from one rule: remove the task from its slot
// (closing the gap behind it), then open exactly one slot at the
// destination. The same-group cases fold both steps into a single
// ranged shift.
func PlanMove(srcGroup int64, srcPos, srcSize int, destGroup int64, destSize, target int) Plan {
	if srcGroup == destGroup {
		return planWithin(srcGroup, srcPos, srcSize, target)
	}
	return planAcross(srcGroup, srcPos, destGroup, destSize, target)
}

func planWithin(group int64, srcPos, size, target int) Plan {
	if target == 0 || target > size {
		target = size // append lands on the last slot once the gap closes
	}
	if target < 1 {
		target = 1
	}
	if target == srcPos {
		return Plan{NoOp: true, GroupID: group, Position: srcPos}
	}
	p := Plan{GroupID: group, Position: target}
	if target > srcPos {
		// everything between the vacated slot and the target slides left
		p.Shifts = append(p.Shifts, Shift{GroupID: group, From: srcPos + 1, To: target, Delta: -1})
	} else {
		p.Shifts = append(p.Shifts, Shift{GroupID: group, From: target, To: srcPos - 1, Delta: +1})
	}
	return p
}

func planAcross(srcGroup int64, srcPos int, destGroup int64, destSize, target int) Plan {
	p := Plan{GroupID: destGroup}
	// close the gap behind the task in the group it leaves
	p.Shifts = append(p.Shifts, Shift{GroupID: srcGroup, From: srcPos + 1, Delta: -1})

	if target < 1 || target > destSize {
		// append; also covers a target past the end of the destination
		p.Position = destSize + 1
		return p
	}
	// the target slot is occupied: open it
	p.Shifts = append(p.Shifts, Shift{GroupID: destGroup, From: target, Delta: +1})
	p.Position = target
	return p
}

// PlanRemove closes the gap a task leaves behind when it is archived
// or deleted from its group.
func PlanRemove(group int64, pos int) Shift {
	return Shift{GroupID: group, From: pos + 1, Delta: -1}
}
