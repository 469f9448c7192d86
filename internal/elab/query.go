package elab

// FollowValue is the indirection walk downstream value queries perform: it
// follows Indirect value bindings from id until it reaches a Direct binding
// or a node with no binding in its environment.
//
// Returns the final NodeEnvID and, when a Direct binding was found, that
// binding. ok == false means the chain ended unbound: the caller evaluates
// the final node in its environment (applying declared defaults for
// parameters left unassigned).
//
// Termination: indirections only ever point outward or sideways, so the walk
// takes at most one step per instantiation nesting level.
func FollowValue(cx Context, id NodeEnvID) (NodeEnvID, Binding[ValueRef], bool) {
	for {
		data, ok := cx.ParamEnvData(id.Env)
		if !ok {
			return id, Binding[ValueRef]{}, false
		}
		b, ok := data.FindValue(id.Node)
		if !ok {
			return id, Binding[ValueRef]{}, false
		}
		if b.Kind == BindDirect {
			return id, b, true
		}
		id = b.Target
	}
}

// FollowType is FollowValue for type bindings.
func FollowType(cx Context, id NodeEnvID) (NodeEnvID, Binding[TypeRef], bool) {
	for {
		data, ok := cx.ParamEnvData(id.Env)
		if !ok {
			return id, Binding[TypeRef]{}, false
		}
		b, ok := data.FindType(id.Node)
		if !ok {
			return id, Binding[TypeRef]{}, false
		}
		if b.Kind == BindDirect {
			return id, b, true
		}
		id = b.Target
	}
}
