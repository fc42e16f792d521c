package telegram

const somethingWrongText = "Something went wrong. Please try again later."

const invalidWalletText = `That doesn't look like a valid wallet address.
Expected format: 0x followed by 40 hex characters.`

const invalidSignatureText = `Signature verification failed.
Sign the exact message shown, without edits, and paste the full 0x signature.`

const registerGuideText = `Wallet registration, two steps:

1. /set_wallet <address> - the wallet your rewards go to
2. /reg_sig <signature> - sign the message the bot shows you with that wallet

Signing proves you control the wallet. Nothing is final until step 2 verifies.`

const changeGuideText = `Signed wallet change, three steps:

1. /old_sig <signature> - sign the message shown with your CURRENT wallet
2. /new_wallet <address> - the new wallet
3. /new_sig <signature> - sign the message shown with the NEW wallet

Your wallet is only swapped after step 3 verifies.
To get the message for step 1, this is what you sign:`
