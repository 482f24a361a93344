package vm

// ---------------------------------------------------------------------------
// Data Primitives (variables and lists)
// ---------------------------------------------------------------------------

func registerDataPrimitives(h *Handlers) {
	h.Reporter("data_variable", func(x *Invocation) Value {
		return x.ex.VariableValue(x.Sprite(), x.FieldID("VARIABLE"), x.Field("VARIABLE"))
	})

	h.Command("data_setvariableto", func(x *Invocation) BlockResult {
		v := x.variable()
		x.ex.setVariable(v, x.Input("VALUE"))
		return Continue
	})

	h.Command("data_changevariableby", func(x *Invocation) BlockResult {
		v := x.variable()
		x.ex.setVariable(v, v.Value.Add(x.Input("VALUE")))
		return Continue
	})

	h.Command("data_showvariable", func(x *Invocation) BlockResult {
		x.variable().Visible = true
		return Continue
	})

	h.Command("data_hidevariable", func(x *Invocation) BlockResult {
		x.variable().Visible = false
		return Continue
	})

	h.Reporter("data_listcontents", func(x *Invocation) Value {
		return FromString(x.list().Contents())
	})

	h.Command("data_addtolist", func(x *Invocation) BlockResult {
		x.list().Append(x.Input("ITEM"))
		return Continue
	})

	h.Command("data_deleteoflist", func(x *Invocation) BlockResult {
		l := x.list()
		i, kind := ResolveListIndex(x.Input("INDEX"), l.Len(), true, x.Rand)
		switch kind {
		case IndexAll:
			l.Clear()
		case IndexItem:
			l.Delete(i)
		}
		return Continue
	})

	h.Command("data_deletealloflist", func(x *Invocation) BlockResult {
		x.list().Clear()
		return Continue
	})

	h.Command("data_insertatlist", func(x *Invocation) BlockResult {
		l := x.list()
		item := x.Input("ITEM")
		if i, kind := ResolveListIndex(x.Input("INDEX"), l.Len()+1, false, x.Rand); kind == IndexItem {
			l.Insert(i, item)
		}
		return Continue
	})

	h.Command("data_replaceitemoflist", func(x *Invocation) BlockResult {
		l := x.list()
		item := x.Input("ITEM")
		if i, kind := ResolveListIndex(x.Input("INDEX"), l.Len(), false, x.Rand); kind == IndexItem {
			l.Replace(i, item)
		}
		return Continue
	})

	h.Reporter("data_itemoflist", func(x *Invocation) Value {
		l := x.list()
		i, kind := ResolveListIndex(x.Input("INDEX"), l.Len(), false, x.Rand)
		if kind != IndexItem {
			return Value{}
		}
		return l.Item(i)
	})

	h.Reporter("data_itemnumoflist", func(x *Invocation) Value {
		return FromInt(int64(x.list().IndexOf(x.Input("ITEM")) + 1))
	})

	h.Reporter("data_lengthoflist", func(x *Invocation) Value {
		return FromInt(int64(x.list().Len()))
	})

	h.Reporter("data_listcontainsitem", func(x *Invocation) Value {
		return FromBool(x.list().Contains(x.Input("ITEM")))
	})

	h.Command("data_showlist", func(x *Invocation) BlockResult {
		x.list().Visible = true
		return Continue
	})

	h.Command("data_hidelist", func(x *Invocation) BlockResult {
		x.list().Visible = false
		return Continue
	})
}

func (x *Invocation) variable() *Variable {
	return x.ex.variableOrCreate(x.Sprite(), x.FieldID("VARIABLE"), x.Field("VARIABLE"))
}

func (x *Invocation) list() *List {
	return x.ex.listOrCreate(x.Sprite(), x.FieldID("LIST"), x.Field("LIST"))
}
