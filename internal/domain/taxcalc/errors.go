package taxcalc

import "errors"

var ErrInvalidDeclaration = errors.New("declaration is inconsistent")
