// Package command defines the abstract device command vocabulary and the
// FIFO queue that hands commands from the session controller to the single
// device consumer.
//
// Commands are immutable values. The controller enqueues them without
// blocking; the consumer pops them one at a time so the device sees writes
// in submission order.
//
// # Usage
//
//	q := command.NewQueue()
//	q.Enqueue(command.Simple(command.KindOff))
//
//	for {
//	    cmd, err := q.Dequeue(ctx)
//	    if err != nil {
//	        return err // context cancelled
//	    }
//	    apply(cmd)
//	}
package command
