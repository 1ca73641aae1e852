package debug

// RequestKind tags what an outstanding request expects as its reply.
type RequestKind int

const (
	// KindUser is a raw command typed by the user.
	KindUser RequestKind = iota
	// KindVarCreate expects the name reply of -var-create. Text holds the
	// expression.
	KindVarCreate
	// KindVarChildren expects -var-list-children. Handle holds the parent *VarNode.
	KindVarChildren
	// KindVarUpdate expects the -var-update changelist.
	KindVarUpdate
	// KindVarDelete expects -var-delete. Handle holds the deleted *VarNode.
	KindVarDelete
	// KindSourceFiles expects -file-list-exec-source-files.
	KindSourceFiles
	// KindFileLines expects -symbol-list-lines. Handle holds the
	// *fileLinesRequest naming the file and the table being assembled.
	KindFileLines
	// KindBreakList expects the -break-list table.
	KindBreakList
	// KindBreakChange expects the acknowledgement of a command that alters
	// breakpoints. Text holds the command.
	KindBreakChange
	// KindDisassemble expects a -data-disassemble listing.
	KindDisassemble
	// KindSequencePoint expects the reply to a no-op command. Handle holds
	// the continuation func().
	KindSequencePoint
	// KindCapture expects the reply ending a target-output capture. Handle
	// holds the CaptureFunc.
	KindCapture
	// KindEvaluate expects -data-evaluate-expression. Text holds the expression.
	KindEvaluate
	// KindStackFrames expects -stack-list-frames.
	KindStackFrames
)

var kindNames = map[RequestKind]string{
	KindUser:          "user",
	KindVarCreate:     "var-create",
	KindVarChildren:   "var-children",
	KindVarUpdate:     "var-update",
	KindVarDelete:     "var-delete",
	KindSourceFiles:   "source-files",
	KindFileLines:     "file-lines",
	KindBreakList:     "break-list",
	KindBreakChange:   "break-change",
	KindDisassemble:   "disassemble",
	KindSequencePoint: "sequence-point",
	KindCapture:       "capture",
	KindEvaluate:      "evaluate",
	KindStackFrames:   "stack-frames",
}

func (k RequestKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// RequestContext is what the registry remembers about an outstanding
// request. At most one of Text and Handle is meaningful for a given kind.
type RequestContext struct {
	Kind   RequestKind
	Text   string
	Handle any
}
