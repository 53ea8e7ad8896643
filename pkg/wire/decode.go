package wire

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protowire"
)

// DecodeEvent parses one binary frame from the upstream response stream.
// Unknown top-level fields yield an Event with Unknown set rather than an
// error, so new upstream frame kinds never abort an in-flight stream.
// Truncated or structurally invalid bytes return a *DecodeError.
func DecodeEvent(data []byte) (*Event, error) {
	ev := &Event{}
	recognized := false

	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case fEventInit:
			init, err := decodeInit(payload)
			if err != nil {
				return err
			}
			ev.Init = init
			recognized = true
		case fEventClientActions:
			actions, err := decodeClientActions(payload)
			if err != nil {
				return err
			}
			ev.ClientActions = actions
			recognized = true
		case fEventFinished:
			fin, err := decodeFinished(payload)
			if err != nil {
				return err
			}
			ev.Finished = fin
			recognized = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev.Unknown = !recognized
	return ev, nil
}

func decodeInit(data []byte) (*InitEvent, error) {
	init := &InitEvent{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case fInitConversationID:
			init.ConversationID = string(payload)
		case fInitTaskID:
			init.TaskID = string(payload)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return init, nil
}

func decodeClientActions(data []byte) (*ClientActions, error) {
	ca := &ClientActions{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		if num != fActionsList {
			return nil
		}
		action, err := decodeAction(payload)
		if err != nil {
			return err
		}
		ca.Actions = append(ca.Actions, *action)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ca, nil
}

func decodeAction(data []byte) (*Action, error) {
	a := &Action{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case fActionAppendContent:
			upd, err := decodeMessageUpdate(payload)
			if err != nil {
				return err
			}
			a.AppendContent = upd
		case fActionUpdateMessage:
			upd, err := decodeMessageUpdate(payload)
			if err != nil {
				return err
			}
			a.UpdateMessage = upd
		case fActionAddMessages:
			add, err := decodeAddMessages(payload)
			if err != nil {
				return err
			}
			a.AddMessages = add
		case fActionCreateTask:
			ct, err := decodeCreateTask(payload)
			if err != nil {
				return err
			}
			a.CreateTask = ct
		case fActionBeginTxn:
			a.BeginTransaction = &Transaction{}
		case fActionRollbackTxn:
			a.RollbackTransaction = &Transaction{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func decodeMessageUpdate(data []byte) (*MessageUpdate, error) {
	u := &MessageUpdate{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case fUpdateTaskID:
			u.TaskID = string(payload)
		case fUpdateMessage:
			msg, err := decodeTaskMessage(payload)
			if err != nil {
				return err
			}
			u.Message = *msg
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func decodeAddMessages(data []byte) (*AddMessages, error) {
	add := &AddMessages{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case fAddTaskID:
			add.TaskID = string(payload)
		case fAddMessages:
			msg, err := decodeTaskMessage(payload)
			if err != nil {
				return err
			}
			add.Messages = append(add.Messages, *msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return add, nil
}

func decodeCreateTask(data []byte) (*CreateTask, error) {
	ct := &CreateTask{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		if num != fCreateTask {
			return nil
		}
		task, err := decodeTask(payload)
		if err != nil {
			return err
		}
		ct.Task = *task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func decodeTask(data []byte) (*Task, error) {
	t := &Task{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case fTaskID:
			t.ID = string(payload)
		case fTaskDescription:
			t.Description = string(payload)
		case fTaskStatus:
			return walkFields(payload, func(sn protowire.Number, _ []byte) error {
				switch sn {
				case fStatusInProgress:
					t.Status = TaskStatusInProgress
				case fStatusDone:
					t.Status = TaskStatusDone
				}
				return nil
			})
		case fTaskMessages:
			msg, err := decodeTaskMessage(payload)
			if err != nil {
				return err
			}
			t.Messages = append(t.Messages, *msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func decodeTaskMessage(data []byte) (*TaskMessage, error) {
	m := &TaskMessage{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case fMessageID:
			m.ID = string(payload)
		case fMessageTaskID:
			m.TaskID = string(payload)
		case fMessageUserQuery:
			q, err := decodeUserQuery(payload)
			if err != nil {
				return err
			}
			m.UserQuery = q
		case fMessageAgentOutput:
			out := &AgentOutput{}
			err := walkFields(payload, func(on protowire.Number, op []byte) error {
				if on == fAgentOutputText {
					out.Text = string(op)
				}
				return nil
			})
			if err != nil {
				return err
			}
			m.AgentOutput = out
		case fMessageToolCall:
			tc, err := decodeToolCall(payload)
			if err != nil {
				return err
			}
			m.ToolCall = tc
		case fMessageToolCallResult:
			tr, err := decodeToolCallResult(payload)
			if err != nil {
				return err
			}
			m.ToolCallResult = tr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func decodeUserQuery(data []byte) (*UserQuery, error) {
	q := &UserQuery{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case fUserQueryText:
			q.Query = string(payload)
		case fUserQueryAttachments:
			var key string
			att := Attachment{}
			err := walkFields(payload, func(en protowire.Number, ep []byte) error {
				switch en {
				case fMapKey:
					key = string(ep)
				case fMapValue:
					return walkFields(ep, func(an protowire.Number, ap []byte) error {
						if an == fAttachmentPlainText {
							att.PlainText = string(ap)
						}
						return nil
					})
				}
				return nil
			})
			if err != nil {
				return err
			}
			if q.Attachments == nil {
				q.Attachments = make(map[string]Attachment)
			}
			q.Attachments[key] = att
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func decodeToolCall(data []byte) (*ToolCall, error) {
	tc := &ToolCall{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case fToolCallID:
			tc.CallID = string(payload)
		case fToolCallInvoke:
			inv := &InvokeTool{}
			err := walkFields(payload, func(in protowire.Number, ip []byte) error {
				switch in {
				case fInvokeName:
					inv.Name = string(ip)
				case fInvokeArgs:
					inv.Args = json.RawMessage(append([]byte(nil), ip...))
				}
				return nil
			})
			if err != nil {
				return err
			}
			tc.Invoke = inv
		case fToolCallServerPayload:
			tc.ServerPayload = append([]byte(nil), payload...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tc, nil
}

func decodeToolCallResult(data []byte) (*ToolCallResult, error) {
	tr := &ToolCallResult{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		switch num {
		case fResultCallID:
			tr.CallID = string(payload)
		case fResultEntries:
			res := ResultText{}
			err := walkFields(payload, func(rn protowire.Number, rp []byte) error {
				if rn == fResultText {
					res.Text = string(rp)
				}
				return nil
			})
			if err != nil {
				return err
			}
			tr.Results = append(tr.Results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func decodeFinished(data []byte) (*FinishedEvent, error) {
	fin := &FinishedEvent{}
	err := walkFields(data, func(num protowire.Number, payload []byte) error {
		if num != fFinishedInternalError {
			return nil
		}
		ie := &InternalError{}
		err := walkFields(payload, func(en protowire.Number, ep []byte) error {
			if en == fInternalErrorMessage {
				ie.Message = string(ep)
			}
			return nil
		})
		if err != nil {
			return err
		}
		fin.InternalError = ie
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fin, nil
}

// walkFields iterates the fields of one message, handing length-delimited
// payloads to fn and skipping other wire types. It reports truncation and
// malformed tags as *DecodeError with the byte offset.
func walkFields(data []byte, fn func(num protowire.Number, payload []byte) error) error {
	offset := 0
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return &DecodeError{Offset: offset, Message: "malformed field tag", Cause: protowire.ParseError(n)}
		}
		data = data[n:]
		offset += n

		if typ == protowire.BytesType {
			payload, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return &DecodeError{Offset: offset, Message: "truncated length-delimited field", Cause: protowire.ParseError(m)}
			}
			if err := fn(num, payload); err != nil {
				return err
			}
			data = data[m:]
			offset += m
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, data)
		if m < 0 {
			return &DecodeError{Offset: offset, Message: "truncated field value", Cause: protowire.ParseError(m)}
		}
		data = data[m:]
		offset += m
	}
	return nil
}
