package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ApproveMessage] = (*ApproveCommand)(nil)
	_ gocmd.Commander[RejectMessage]  = (*RejectCommand)(nil)
)
