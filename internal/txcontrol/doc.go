// Package txcontrol coordinates local transactions across nested call chains.
//
// Work declares how it relates to an ambient transaction through a propagation:
//
//	err := control.Required(ctx, func(ctx context.Context) error {
//	    db, err := provider.DB(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    return db.Create(&row).Error
//	})
//
// A Required call made while another Required call is running on the same context
// chain joins the existing transaction; only the outermost call decides between commit
// and rollback. RequiresNew always starts an independent transaction, Supports joins
// whatever scope exists and NotSupported always runs outside a transaction.
//
// Resources enlist through TransactionContext.RegisterLocalResource and are committed
// or rolled back, in registration order, when the owning scope ends.
package txcontrol
