package narration

// Observer receives the lifecycle of one Speak call. Exactly one of OnDone or
// OnError follows a completed call; an interrupted call reports nothing more.
type Observer interface {
	OnStart()
	OnDone()
	OnError(err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Start func()
	Done  func()
	Error func(err error)
}

func (o ObserverFuncs) OnStart() {
	if o.Start != nil {
		o.Start()
	}
}

func (o ObserverFuncs) OnDone() {
	if o.Done != nil {
		o.Done()
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}
