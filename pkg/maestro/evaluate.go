package maestro

// evaluateCommand implements the Script Evaluator Adapter's role in the
// data flow: every user-visible string field whose value may
// contain ${...} placeholders is expanded through the script engine before
// execution. The result is the evaluatedCommand that actually executes and
// that on_command_metadata_update reports to the host.
func (o *Orchestra) evaluateCommand(cmd Command) (Command, error) {
	switch c := cmd.(type) {
	case *TapOnElement:
		cp := *c
		sel, err := o.expandSelector(c.Selector)
		if err != nil {
			return nil, err
		}
		cp.Selector = sel
		return &cp, nil

	case *TapOnPointV2:
		cp := *c
		point, err := o.engine.ExpandVariables(c.Point)
		if err != nil {
			return nil, err
		}
		cp.Point = point
		return &cp, nil

	case *Swipe:
		cp := *c
		if c.Selector != nil {
			sel, err := o.expandSelector(*c.Selector)
			if err != nil {
				return nil, err
			}
			cp.Selector = &sel
		}
		return &cp, nil

	case *ScrollUntilVisible:
		cp := *c
		sel, err := o.expandSelector(c.Selector)
		if err != nil {
			return nil, err
		}
		cp.Selector = sel
		return &cp, nil

	case *CopyTextFrom:
		cp := *c
		sel, err := o.expandSelector(c.Selector)
		if err != nil {
			return nil, err
		}
		cp.Selector = sel
		return &cp, nil

	case *AssertCondition:
		cp := *c
		cond, err := o.expandCondition(c.Condition)
		if err != nil {
			return nil, err
		}
		cp.Condition = cond
		return &cp, nil

	case *InputText:
		cp := *c
		text, err := o.engine.ExpandVariables(c.Text)
		if err != nil {
			return nil, err
		}
		cp.Text = text
		return &cp, nil

	case *LaunchApp:
		cp := *c
		appID, err := o.engine.ExpandVariables(c.AppID)
		if err != nil {
			return nil, err
		}
		cp.AppID = appID
		return &cp, nil

	case *OpenLink:
		cp := *c
		link, err := o.engine.ExpandVariables(c.Link)
		if err != nil {
			return nil, err
		}
		cp.Link = link
		return &cp, nil

	case *StopApp:
		cp := *c
		appID, err := o.engine.ExpandVariables(c.AppID)
		if err != nil {
			return nil, err
		}
		cp.AppID = appID
		return &cp, nil

	case *ClearState:
		cp := *c
		appID, err := o.engine.ExpandVariables(c.AppID)
		if err != nil {
			return nil, err
		}
		cp.AppID = appID
		return &cp, nil

	case *RunFlow:
		cp := *c
		if c.Condition != nil {
			cond, err := o.expandCondition(*c.Condition)
			if err != nil {
				return nil, err
			}
			cp.Condition = &cond
		}
		return &cp, nil

	case *Repeat:
		cp := *c
		times, err := o.engine.ExpandVariables(c.Times)
		if err != nil {
			return nil, err
		}
		cp.Times = times
		if c.Condition != nil {
			cond, err := o.expandCondition(*c.Condition)
			if err != nil {
				return nil, err
			}
			cp.Condition = &cond
		}
		return &cp, nil

	case *DefineVariables:
		cp := *c
		expanded := make(map[string]string, len(c.Variables))
		for k, v := range c.Variables {
			ev, err := o.engine.ExpandVariables(v)
			if err != nil {
				return nil, err
			}
			expanded[k] = ev
		}
		cp.Variables = expanded
		return &cp, nil

	case *MockNetwork:
		cp := *c
		path, err := o.engine.ExpandVariables(c.Path)
		if err != nil {
			return nil, err
		}
		cp.Path = path
		return &cp, nil

	case *TakeScreenshot:
		cp := *c
		path, err := o.engine.ExpandVariables(c.Path)
		if err != nil {
			return nil, err
		}
		cp.Path = path
		return &cp, nil

	default:
		// Commands with no user-visible string fields (BackPress,
		// HideKeyboard, Scroll, ClearKeychain, Paste, ApplyConfiguration,
		// PressKey's code, EraseText, TapOnPoint, InputRandom, SetLocation,
		// EvalScript, RunScript, WaitForAnimationToEnd, Travel,
		// AssertOutgoingRequests) pass through unevaluated; RunScript and
		// EvalScript evaluate their own source at execution time rather
		// than through this pre-expansion pass.
		return cmd, nil
	}
}

func (o *Orchestra) expandSelector(sel ElementSelector) (ElementSelector, error) {
	cp := sel
	if sel.TextRegex != "" {
		v, err := o.engine.ExpandVariables(sel.TextRegex)
		if err != nil {
			return cp, err
		}
		cp.TextRegex = v
	}
	if sel.IDRegex != "" {
		v, err := o.engine.ExpandVariables(sel.IDRegex)
		if err != nil {
			return cp, err
		}
		cp.IDRegex = v
	}
	if sel.Below != nil {
		exp, err := o.expandSelector(*sel.Below)
		if err != nil {
			return cp, err
		}
		cp.Below = &exp
	}
	if sel.Above != nil {
		exp, err := o.expandSelector(*sel.Above)
		if err != nil {
			return cp, err
		}
		cp.Above = &exp
	}
	if sel.LeftOf != nil {
		exp, err := o.expandSelector(*sel.LeftOf)
		if err != nil {
			return cp, err
		}
		cp.LeftOf = &exp
	}
	if sel.RightOf != nil {
		exp, err := o.expandSelector(*sel.RightOf)
		if err != nil {
			return cp, err
		}
		cp.RightOf = &exp
	}
	return cp, nil
}

func (o *Orchestra) expandCondition(cond Condition) (Condition, error) {
	cp := cond
	if cond.Visible != nil {
		exp, err := o.expandSelector(*cond.Visible)
		if err != nil {
			return cp, err
		}
		cp.Visible = &exp
	}
	if cond.NotVisible != nil {
		exp, err := o.expandSelector(*cond.NotVisible)
		if err != nil {
			return cp, err
		}
		cp.NotVisible = &exp
	}
	if cond.ScriptCondition != "" {
		v, err := o.engine.ExpandVariables(cond.ScriptCondition)
		if err != nil {
			return cp, err
		}
		cp.ScriptCondition = v
	}
	return cp, nil
}
