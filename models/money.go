package models

import "hospital-billing/utils"

// Money is re-exported so model files read without the utils prefix.
type Money = utils.Money
